package search

import "github.com/hyperjump/recall/internal/models"

// Catalog maps document ids to documents and their load-order ordinal.
// Ordinals break score ties in ranked results.
type Catalog struct {
	docs []models.Document
	byID map[string]int
}

// NewCatalog indexes docs by id. When ids repeat, the first document wins.
func NewCatalog(docs []models.Document) *Catalog {
	c := &Catalog{
		docs: make([]models.Document, len(docs)),
		byID: make(map[string]int, len(docs)),
	}
	for i, d := range docs {
		c.docs[i] = d.Clone()
		if _, dup := c.byID[d.ID]; !dup {
			c.byID[d.ID] = i
		}
	}
	return c
}

// Lookup returns the document and its ordinal.
func (c *Catalog) Lookup(id string) (models.Document, int, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Document{}, 0, false
	}
	return c.docs[i].Clone(), i, true
}

// Ordinal returns the load position of id, or -1 when unknown.
func (c *Catalog) Ordinal(id string) int {
	if i, ok := c.byID[id]; ok {
		return i
	}
	return -1
}

// Len returns the number of cataloged documents.
func (c *Catalog) Len() int {
	return len(c.docs)
}

// Documents returns the cataloged documents in load order.
func (c *Catalog) Documents() []models.Document {
	out := make([]models.Document, len(c.docs))
	for i, d := range c.docs {
		out[i] = d.Clone()
	}
	return out
}
