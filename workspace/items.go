package workspace

import (
	"slices"

	"layout-server/core"
)

// AddItem places a copy of product near BasePosition and selects it alone.
func (e *Engine) AddItem(product core.Product) string {
	e.pushHistory()

	id := e.ids.NewID()
	e.items = append(e.items, PlacedItem{
		ID:        id,
		ProductID: product.ID,
		Product:   snapshotProduct(product),
		Position: Position{
			X: BasePosition.X + e.jitter(),
			Y: BasePosition.Y + e.jitter(),
		},
		Rotation: 0,
		Scale:    DefaultScale,
	})
	e.selection = []string{id}
	e.changed()
	return id
}

// RemoveItem deletes one item and drops it from the selection.
func (e *Engine) RemoveItem(id string) {
	i := e.indexOf(id)
	if i < 0 {
		return
	}
	e.pushHistory()
	e.items = slices.Delete(e.items, i, i+1)
	e.selection = slices.DeleteFunc(e.selection, func(s string) bool { return s == id })
	e.changed()
}

// RemoveSelected deletes every selected item. An empty selection leaves the
// history untouched.
func (e *Engine) RemoveSelected() {
	if len(e.selection) == 0 {
		return
	}
	e.pushHistory()
	selected := e.selectedSet()
	e.items = slices.DeleteFunc(e.items, func(it PlacedItem) bool {
		_, ok := selected[it.ID]
		return ok
	})
	e.selection = nil
	e.changed()
}

// UpdateItemPosition moves one item to an absolute canvas position. A
// non-finite position is ignored.
func (e *Engine) UpdateItemPosition(id string, pos Position) {
	i := e.indexOf(id)
	if i < 0 || !pos.finite() {
		return
	}
	e.pushHistory()
	e.items[i].Position = pos
	e.changed()
}

// MoveSelectedItems shifts every selected item by a canvas-space delta. The
// move is skipped entirely when any resulting position would not be finite.
func (e *Engine) MoveSelectedItems(delta Position) {
	if len(e.selection) == 0 {
		return
	}
	selected := e.selectedSet()
	for _, it := range e.items {
		if _, ok := selected[it.ID]; ok && !it.Position.add(delta).finite() {
			return
		}
	}

	e.pushHistory()
	for i := range e.items {
		if _, ok := selected[e.items[i].ID]; ok {
			e.items[i].Position = e.items[i].Position.add(delta)
		}
	}
	e.changed()
}

// RotateItem adds angleDelta degrees. The angle is never normalized, but a
// rotation that would overflow to infinity is ignored.
func (e *Engine) RotateItem(id string, angleDelta float64) {
	i := e.indexOf(id)
	if i < 0 || !isFinite(e.items[i].Rotation+angleDelta) {
		return
	}
	e.pushHistory()
	e.items[i].Rotation += angleDelta
	e.changed()
}

// ScaleItem sets an absolute scale, clamped to [MinItemScale, MaxItemScale].
func (e *Engine) ScaleItem(id string, scale float64) {
	i := e.indexOf(id)
	if i < 0 {
		return
	}
	e.pushHistory()
	e.items[i].Scale = ClampScale(scale)
	e.changed()
}

// ClearWorkspace removes all items. No-op on an empty canvas.
func (e *Engine) ClearWorkspace() {
	if len(e.items) == 0 {
		return
	}
	e.pushHistory()
	e.items = nil
	e.selection = nil
	e.changed()
}

// ReplaceItems swaps in a whole items sequence, e.g. a saved checkpoint.
// The replacement is undoable and clears the selection.
func (e *Engine) ReplaceItems(items []PlacedItem) {
	e.pushHistory()
	e.items = sanitizeItems(items)
	e.selection = nil
	e.changed()
}

// sanitizeItems drops items without an id or with a duplicate id and pulls
// scales back into range. A zero scale means the default. Non-finite
// positions and rotations are reset.
func sanitizeItems(items []PlacedItem) []PlacedItem {
	out := make([]PlacedItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}

		if it.ProductID == "" {
			it.ProductID = it.Product.ID
		}
		if it.Scale == 0 {
			it.Scale = DefaultScale
		}
		if !it.Position.finite() {
			it.Position = BasePosition
		}
		if !isFinite(it.Rotation) {
			it.Rotation = 0
		}
		it.Scale = ClampScale(it.Scale)
		it.Product = snapshotProduct(it.Product)
		out = append(out, it)
	}
	return out
}
