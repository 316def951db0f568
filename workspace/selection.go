package workspace

import "slices"

// Selection returns the selected ids in the order they were selected.
func (e *Engine) Selection() []string {
	if e.selection == nil {
		return []string{}
	}
	return slices.Clone(e.selection)
}

// IsSelected reports whether id is part of the selection.
func (e *Engine) IsSelected(id string) bool {
	return slices.Contains(e.selection, id)
}

// SelectItem applies click semantics. A nil id deselects everything; with
// multi the id is toggled, otherwise it becomes the only selected item.
// Ids that are not on the canvas are ignored.
func (e *Engine) SelectItem(id *string, multi bool) {
	if id == nil {
		e.DeselectAll()
		return
	}
	if e.indexOf(*id) < 0 {
		return
	}
	if multi {
		e.toggle(*id)
		return
	}
	if len(e.selection) == 1 && e.selection[0] == *id {
		return
	}
	e.selection = []string{*id}
	e.changed()
}

// ToggleSelection flips membership of id regardless of modifier rules.
func (e *Engine) ToggleSelection(id string) {
	if e.indexOf(id) < 0 {
		return
	}
	e.toggle(id)
}

// DeselectAll empties the selection.
func (e *Engine) DeselectAll() {
	if len(e.selection) == 0 {
		return
	}
	e.selection = nil
	e.changed()
}

func (e *Engine) toggle(id string) {
	if i := slices.Index(e.selection, id); i >= 0 {
		e.selection = slices.Delete(e.selection, i, i+1)
	} else {
		e.selection = append(e.selection, id)
	}
	e.changed()
}

func (e *Engine) selectedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(e.selection))
	for _, id := range e.selection {
		set[id] = struct{}{}
	}
	return set
}
