// Package catalog serves the read-only product records that can be placed
// on a workspace.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"layout-server/core"

	"github.com/agnivade/levenshtein"
	"github.com/sirupsen/logrus"
)

//go:embed products.json
var defaultProducts []byte

type Catalog struct {
	products []core.Product
	byID     map[string]int
}

// New validates products and indexes them by id.
func New(products []core.Product) (*Catalog, error) {
	c := &Catalog{
		products: make([]core.Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	for i, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("product at index %d has no id", i)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %s", p.ID)
		}
		if !p.Category.Valid() {
			return nil, fmt.Errorf("product %s has unknown category %q", p.ID, p.Category)
		}
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}
	return c, nil
}

// Load reads a JSON array of products.
func Load(r io.Reader) (*Catalog, error) {
	var products []core.Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(products)
}

// Open loads the catalog file at path, or the built-in catalog when path is
// empty.
func Open(path string) (*Catalog, error) {
	log := logrus.WithField("path", path)
	if path == "" {
		c, err := Load(bytes.NewReader(defaultProducts))
		if err != nil {
			return nil, err
		}
		log.WithField("products", len(c.products)).Info("Loaded built-in catalog")
		return c, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		log.WithError(err).Error("Failed to load catalog")
		return nil, err
	}
	log.WithField("products", len(c.products)).Info("Loaded catalog")
	return c, nil
}

// Get returns a copy of the product with the given id.
func (c *Catalog) Get(id string) (core.Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return core.Product{}, false
	}
	return copyProduct(c.products[i]), true
}

// List returns the products of one category, or all of them when category is
// empty, in catalog order.
func (c *Catalog) List(category core.Category) []core.Product {
	out := make([]core.Product, 0, len(c.products))
	for _, p := range c.products {
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, copyProduct(p))
	}
	return out
}

// Search ranks products whose name is close to query. Substring matches rank
// first, then typo-tolerant matches by edit distance to a name word.
func (c *Catalog) Search(query string, category core.Category) []core.Product {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return c.List(category)
	}
	maxDistance := len([]rune(query)) / 3
	if maxDistance < 1 {
		maxDistance = 1
	}

	type hit struct {
		index    int
		distance int
	}
	var hits []hit
	for i, p := range c.products {
		if category != "" && p.Category != category {
			continue
		}
		if d := nameDistance(query, p.Name); d <= maxDistance {
			hits = append(hits, hit{index: i, distance: d})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].distance < hits[j].distance
	})

	out := make([]core.Product, 0, len(hits))
	for _, h := range hits {
		out = append(out, copyProduct(c.products[h.index]))
	}
	return out
}

func nameDistance(query, name string) int {
	name = strings.ToLower(name)
	if strings.Contains(name, query) {
		return 0
	}
	best := levenshtein.ComputeDistance(query, name)
	for _, word := range strings.Fields(name) {
		if d := levenshtein.ComputeDistance(query, word); d < best {
			best = d
		}
	}
	return best
}

func copyProduct(p core.Product) core.Product {
	if p.Dimensions != nil {
		d := *p.Dimensions
		p.Dimensions = &d
	}
	return p
}
