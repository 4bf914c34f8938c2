package trade

import "fmt"

// ItemKind distinguishes the two tradable object families. The broker never
// looks inside an item; the kind only matters to workers and display code.
type ItemKind string

const (
	ItemChip ItemKind = "chip"
	ItemNCP  ItemKind = "navicust_part"
)

// Item is the thing being traded. It is treated as an opaque value by the
// queueing core: comparable, serializable, rendered with String.
type Item struct {
	Game int      `json:"game"`
	Kind ItemKind `json:"kind"`
	Name string   `json:"name"`
	// Code holds a chip code ("A".."Z" or "*") or a NaviCust part color.
	Code string `json:"code"`
}

func (i Item) String() string {
	if i.Code == "" {
		return i.Name
	}
	return fmt.Sprintf("%s %s", i.Name, i.Code)
}

// Key is a stable identifier usable as a map key in persisted stores.
func (i Item) Key() string {
	return fmt.Sprintf("bn%d/%s/%s/%s", i.Game, i.Kind, i.Name, i.Code)
}
