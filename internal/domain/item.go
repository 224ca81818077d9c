package domain

// ItemKind distinguishes goods from services.
type ItemKind string

const (
	ItemMerchandise ItemKind = "Merchandise"
	ItemService     ItemKind = "Service"
)

// Item is a sellable product or service with a default unit price.
type Item struct {
	ID          string   `json:"id"`
	Kind        ItemKind `json:"type"`
	Name        string   `json:"name"`
	Group       string   `json:"group"`
	Subgroup    string   `json:"subgroup,omitempty"`
	Unit        string   `json:"unit"`
	UnitPrice   float64  `json:"price"`
	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description,omitempty"`
}

func (i Item) EntityID() string { return i.ID }
