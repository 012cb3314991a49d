// Package catalog holds the static breed table and the queries over it.
//
// A Catalog is built once and never mutated. Every accessor returns copies so
// callers cannot alter the shared table.
package catalog

import (
	"fmt"
)

// Characteristics describes a breed. All fields are free text.
type Characteristics struct {
	Origin              string `json:"origin"`
	PrimaryUse          string `json:"primary_use"`
	AverageWeight       string `json:"average_weight"`
	DistinctiveFeatures string `json:"distinctive_features"`
}

// BreedRecord is one immutable catalog entry.
type BreedRecord struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	ImageRef        string          `json:"image"`
	Characteristics Characteristics `json:"characteristics"`
}

// Catalog is an ordered, read-only set of breed records.
type Catalog struct {
	records []BreedRecord
	byID    map[string]int
}

// New builds a Catalog from records, preserving their order.
// It rejects empty and duplicate ids.
func New(records []BreedRecord) (*Catalog, error) {
	c := &Catalog{
		records: make([]BreedRecord, len(records)),
		byID:    make(map[string]int, len(records)),
	}
	for i, r := range records {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: record %d", ErrEmptyID, i)
		}
		if _, dup := c.byID[r.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
		}
		c.records[i] = r
		c.byID[r.ID] = i
	}
	return c, nil
}

// MustNew is New for tables known to be valid at compile time.
func MustNew(records []BreedRecord) *Catalog {
	c, err := New(records)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	return len(c.records)
}

// All returns every record in catalog order.
func (c *Catalog) All() []BreedRecord {
	out := make([]BreedRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Lookup returns the record with the given id.
func (c *Catalog) Lookup(id string) (BreedRecord, error) {
	i, ok := c.byID[id]
	if !ok {
		return BreedRecord{}, fmt.Errorf("%w: %s", ErrBreedNotFound, id)
	}
	return c.records[i], nil
}

// Image refs resolve against the embedded site assets.
const placeholderImage = "/assets/breeds/placeholder-cattle.svg"

// reference is the bundled ten-breed dataset.
var reference = []BreedRecord{
	{
		ID: "holstein_friesian", Name: "Holstein Friesian", ImageRef: "/assets/breeds/holstein-friesian.svg",
		Characteristics: Characteristics{"Netherlands", "Dairy", "680-770 kg", "Black and white patches, large frame"},
	},
	{
		ID: "jersey", Name: "Jersey", ImageRef: "/assets/breeds/jersey.svg",
		Characteristics: Characteristics{"Jersey Island", "Dairy", "350-450 kg", "Golden brown color, smaller build"},
	},
	{
		ID: "black_angus", Name: "Black Angus", ImageRef: "/assets/breeds/angus.svg",
		Characteristics: Characteristics{"Scotland", "Beef", "500-800 kg", "Solid black coat, polled (hornless)"},
	},
	{
		ID: "brahman", Name: "Brahman", ImageRef: placeholderImage,
		Characteristics: Characteristics{"India", "Beef", "500-700 kg", "Humped back, drooping ears, heat tolerant"},
	},
	{
		ID: "simmental", Name: "Simmental", ImageRef: placeholderImage,
		Characteristics: Characteristics{"Switzerland", "Dual Purpose", "650-900 kg", "Golden red with white markings"},
	},
	{
		ID: "charolais", Name: "Charolais", ImageRef: placeholderImage,
		Characteristics: Characteristics{"France", "Beef", "700-1100 kg", "Cream to white color, muscular build"},
	},
	{
		ID: "hereford", Name: "Hereford", ImageRef: placeholderImage,
		Characteristics: Characteristics{"England", "Beef", "500-800 kg", "Red body with white face and markings"},
	},
	{
		ID: "limousin", Name: "Limousin", ImageRef: placeholderImage,
		Characteristics: Characteristics{"France", "Beef", "650-950 kg", "Golden wheat to lighter colored"},
	},
	{
		ID: "gir", Name: "Gir", ImageRef: placeholderImage,
		Characteristics: Characteristics{"India", "Dairy", "350-450 kg", "Distinctive curved horns, pendulous ears"},
	},
	{
		ID: "sahiwal", Name: "Sahiwal", ImageRef: placeholderImage,
		Characteristics: Characteristics{"Pakistan", "Dairy", "400-500 kg", "Reddish brown color, loose skin"},
	},
}

var defaultCatalog = MustNew(reference)

// Default returns the process-wide reference catalog.
func Default() *Catalog {
	return defaultCatalog
}
