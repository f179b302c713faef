package catalog

import "fmt"

// ValidationError invalid catalog entry
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var providers = map[string]bool{
	"openai":   true,
	"deepseek": true,
	"gemini":   true,
}

// Validate checks ids are present and unique
func Validate(c *Catalog) error {
	if len(c.Assets) == 0 {
		return ValidationError{"assets", "at least one asset required"}
	}
	if len(c.Agents) == 0 {
		return ValidationError{"agents", "at least one agent required"}
	}

	ids := map[string]bool{}
	names := map[string]bool{}
	for i, a := range c.Assets {
		field := fmt.Sprintf("assets[%d]", i)
		switch {
		case a.ID == "":
			return ValidationError{field + ".id", "required"}
		case a.Name == "":
			return ValidationError{field + ".name", "required"}
		case a.Symbol == "":
			return ValidationError{field + ".symbol", "required"}
		case a.Decimals < 0 || a.Decimals > 8:
			return ValidationError{field + ".decimals", "must be in [0, 8]"}
		case ids[a.ID]:
			return ValidationError{field + ".id", "duplicate " + a.ID}
		case names[a.Name]:
			return ValidationError{field + ".name", "duplicate " + a.Name}
		}
		ids[a.ID] = true
		names[a.Name] = true
	}

	agents := map[string]bool{}
	for i, a := range c.Agents {
		field := fmt.Sprintf("agents[%d]", i)
		switch {
		case a.ID == "":
			return ValidationError{field + ".id", "required"}
		case !providers[a.Provider]:
			return ValidationError{field + ".provider", "must be openai, deepseek or gemini"}
		case agents[a.ID]:
			return ValidationError{field + ".id", "duplicate " + a.ID}
		}
		agents[a.ID] = true
	}
	return nil
}
