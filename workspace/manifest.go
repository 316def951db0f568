package workspace

import "layout-server/core"

// ManifestLine groups the placed instances of one product.
type ManifestLine struct {
	ProductID string       `json:"productId"`
	Product   core.Product `json:"product"`
	Quantity  int          `json:"quantity"`
	ItemIDs   []string     `json:"itemIds"`
}

// Manifest lists products in order of first placement.
func (e *Engine) Manifest() []ManifestLine {
	lines := []ManifestLine{}
	index := make(map[string]int)
	for _, it := range e.items {
		i, ok := index[it.ProductID]
		if !ok {
			i = len(lines)
			index[it.ProductID] = i
			lines = append(lines, ManifestLine{
				ProductID: it.ProductID,
				Product:   snapshotProduct(it.Product),
			})
		}
		lines[i].Quantity++
		lines[i].ItemIDs = append(lines[i].ItemIDs, it.ID)
	}
	return lines
}
