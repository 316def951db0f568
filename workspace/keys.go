package workspace

// Keyboard shortcut amounts: arrow nudges in canvas units, rotation in degrees.
const (
	NudgeStep     = 1
	FastNudgeStep = 10
	RotateStep    = 45
)

// KeyEvent is a key press as reported by the input collaborator. Key uses
// browser KeyboardEvent.key names ("ArrowUp", "Delete", "z", ...).
type KeyEvent struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Meta  bool   `json:"meta"`
	Shift bool   `json:"shift"`
}

// HandleKey maps a keyboard shortcut onto an engine command and reports
// whether the key was recognized. Ctrl and Meta only pick undo and redo; any
// other key is matched on its name alone.
func (e *Engine) HandleKey(ev KeyEvent) bool {
	if ev.Ctrl || ev.Meta {
		switch ev.Key {
		case "z", "Z":
			if ev.Shift {
				e.Redo()
			} else {
				e.Undo()
			}
			return true
		case "y", "Y":
			e.Redo()
			return true
		}
	}

	if len(e.selection) == 0 {
		return false
	}

	step := float64(NudgeStep)
	if ev.Shift {
		step = FastNudgeStep
	}

	switch ev.Key {
	case "Delete", "Backspace":
		e.RemoveSelected()
	case "ArrowUp":
		e.MoveSelectedItems(Position{Y: -step})
	case "ArrowDown":
		e.MoveSelectedItems(Position{Y: step})
	case "ArrowLeft":
		e.MoveSelectedItems(Position{X: -step})
	case "ArrowRight":
		e.MoveSelectedItems(Position{X: step})
	case "r", "R":
		if len(e.selection) != 1 {
			return false
		}
		e.RotateItem(e.selection[0], RotateStep)
	default:
		return false
	}
	return true
}
