// Package building defines the read-only building record the simulation
// core consumes. The map/editor subsystem owns placement; the core only
// sees category, cost, and the effect map.
package building

// Category buckets buildings for tax and maintenance purposes.
type Category uint8

const (
	CategoryResidential Category = iota
	CategoryCommercial
	CategoryIndustrial
	CategoryService // parks, schools, hospitals, police, fire
	CategoryInfrastructure
)

// String returns the lowercase category name.
func (c Category) String() string {
	switch c {
	case CategoryResidential:
		return "residential"
	case CategoryCommercial:
		return "commercial"
	case CategoryIndustrial:
		return "industrial"
	case CategoryService:
		return "service"
	case CategoryInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// CategoryByName maps a stored category name back to its value.
// Unrecognized names fall back to residential, the catch-all tax bucket.
func CategoryByName(name string) Category {
	switch name {
	case "commercial":
		return CategoryCommercial
	case "industrial":
		return CategoryIndustrial
	case "service":
		return CategoryService
	case "infrastructure":
		return CategoryInfrastructure
	default:
		return CategoryResidential
	}
}

// Building is one placed structure. Effects is an open mapping of
// effect name to magnitude; known keys are validated where they are
// consumed (ledger, population model), not here.
type Building struct {
	Name     string             `json:"name"`
	Category Category           `json:"category"`
	Cost     float64            `json:"cost"`
	Effects  map[string]float64 `json:"effects,omitempty"`
}

// Effect returns the named effect magnitude, zero when absent.
func (b Building) Effect(name string) float64 {
	return b.Effects[name]
}
