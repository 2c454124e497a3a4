package atrclient

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ModelKind is the category a model belongs to
type ModelKind string

// Model categories reported by the service
const (
	RegionSegmentation ModelKind = "region_segmentation_models"
	LineSegmentation   ModelKind = "line_segmentation_models"
	TextRecognition    ModelKind = "text_recognition_models"
)

// Readable returns the category as display text, e.g. "Line segmentation models"
func (k ModelKind) Readable() string {
	s := strings.ReplaceAll(string(k), "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Model is one model offered by the service
type Model struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Kind ModelKind `json:"type"`
}

// Catalog is the set of available models grouped by category. It is built once per
// client call; nothing caches it process-wide.
type Catalog struct {
	models map[ModelKind][]Model
}

// ParseCatalog builds a catalog from the models response. Every key whose value is an
// array of models becomes a category; other keys are ignored. A catalog without any model
// is an error.
func ParseCatalog(raw map[string]json.RawMessage) (*Catalog, error) {
	c := &Catalog{models: make(map[ModelKind][]Model)}
	for key, value := range raw {
		var entries []struct {
			ID   json.RawMessage `json:"id"`
			Name string          `json:"name"`
		}
		if err := json.Unmarshal(value, &entries); err != nil {
			continue
		}
		kind := ModelKind(key)
		for _, e := range entries {
			c.models[kind] = append(c.models[kind], Model{ID: idString(e.ID), Name: e.Name, Kind: kind})
		}
	}
	if c.Len() == 0 {
		return nil, fmt.Errorf("no models found")
	}
	return c, nil
}

// Len returns the number of models in every category
func (c *Catalog) Len() int {
	n := 0
	for _, models := range c.models {
		n += len(models)
	}
	return n
}

// Kind returns the models of one category
func (c *Catalog) Kind(kind ModelKind) []Model {
	return append([]Model(nil), c.models[kind]...)
}

// Kinds returns the categories present, sorted
func (c *Catalog) Kinds() []ModelKind {
	kinds := make([]ModelKind, 0, len(c.models))
	for k := range c.models {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// All returns every model, grouped by sorted category
func (c *Catalog) All() []Model {
	var all []Model
	for _, k := range c.Kinds() {
		all = append(all, c.models[k]...)
	}
	return all
}

// Find looks up a model by name within a category
func (c *Catalog) Find(kind ModelKind, name string) (Model, bool) {
	for _, m := range c.models[kind] {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}
