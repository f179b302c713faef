package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/wonny/pricebattle/internal/contracts"
)

// Store persists the ledger document
type Store interface {
	Load(ctx context.Context) ([]contracts.ForecastRecord, error)
	Save(ctx context.Context, records []contracts.ForecastRecord) error
}

// FileStore ledger document as an indented JSON file
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path document location
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the document; a missing file is an empty ledger
func (s *FileStore) Load(ctx context.Context) ([]contracts.ForecastRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", s.path, err)
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", s.path, err)
	}
	return doc.Records, nil
}

// Save writes the document atomically via a temp file rename
func (s *FileStore) Save(ctx context.Context, records []contracts.ForecastRecord) error {
	data, err := EncodeDocument(contracts.LedgerDocument{Records: records})
	if err != nil {
		return err
	}
	return WriteFileAtomic(s.path, data)
}

// DecodeDocument parses a ledger document; blank input is an empty ledger
func DecodeDocument(data []byte) (contracts.LedgerDocument, error) {
	var doc contracts.LedgerDocument
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// EncodeDocument renders a ledger document as indented JSON
func EncodeDocument(doc contracts.LedgerDocument) ([]byte, error) {
	if doc.Records == nil {
		doc.Records = []contracts.ForecastRecord{}
	}
	return MarshalIndent(doc)
}

// MarshalIndent 4-space indented JSON without HTML escaping
func MarshalIndent(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFileAtomic writes data next to path and renames it into place
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
