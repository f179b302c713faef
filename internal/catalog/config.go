package catalog

import "github.com/wonny/pricebattle/internal/contracts"

// Catalog assets to forecast and agents asked to forecast them
type Catalog struct {
	Assets []contracts.Asset `yaml:"assets" json:"assets"`
	Agents []contracts.Agent `yaml:"agents" json:"agents"`
}

// Default built-in catalog
func Default() *Catalog {
	return &Catalog{
		Assets: []contracts.Asset{
			{ID: "usdjpy", Name: "USD/JPY", Symbol: "USDJPY=X", Decimals: 3},
			{ID: "n225", Name: "Nikkei 225", Symbol: "^N225", Decimals: 2},
			{ID: "spx", Name: "S&P 500", Symbol: "^GSPC", Decimals: 2},
		},
		Agents: []contracts.Agent{
			{ID: "GPT-3.5", Provider: "openai", Model: "gpt-3.5-turbo"},
			{ID: "Gemini", Provider: "gemini", Model: "gemini-1.5-flash"},
		},
	}
}

// AgentIDs agent ids in catalog order
func (c *Catalog) AgentIDs() []string {
	ids := make([]string, 0, len(c.Agents))
	for _, a := range c.Agents {
		ids = append(ids, a.ID)
	}
	return ids
}

// AssetByName looks up an asset by display name
func (c *Catalog) AssetByName(name string) (contracts.Asset, bool) {
	for _, a := range c.Assets {
		if a.Name == name {
			return a, true
		}
	}
	return contracts.Asset{}, false
}

// AssetByID looks up an asset by id
func (c *Catalog) AssetByID(id string) (contracts.Asset, bool) {
	for _, a := range c.Assets {
		if a.ID == id {
			return a, true
		}
	}
	return contracts.Asset{}, false
}
