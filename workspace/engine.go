// Package workspace holds the layout state engine: the placed items of one
// canvas, the current selection, the viewport zoom and a bounded linear
// undo/redo history of the items.
//
// An Engine is not safe for concurrent use. Callers that share one between
// goroutines must serialize access, as the session package does.
package workspace

import (
	"math"
	"math/rand"
	"slices"
	"time"

	"layout-server/core"
)

// Engine limits and defaults. Scales and zoom are clamped to their ranges on
// every mutation.
const (
	MaxHistory = 20

	MinItemScale = 0.2
	MaxItemScale = 3.0
	DefaultScale = 1.0

	MinZoom     = 0.1
	MaxZoom     = 3.0
	ZoomStep    = 0.1
	DefaultZoom = 1.0

	// jitter applied to each axis of a newly added item, inclusive on both ends
	jitterRange = 25
)

// BasePosition is where new items are dropped before jitter is applied.
var BasePosition = Position{X: 400, Y: 300}

type (
	// Position is a point in canvas space. Zoom is never folded into it.
	Position struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	// PlacedItem is one product instance on the canvas.
	PlacedItem struct {
		ID        string       `json:"id"`
		ProductID string       `json:"productId"`
		Product   core.Product `json:"product"`
		Position  Position     `json:"position"`
		Rotation  float64      `json:"rotation"`
		Scale     float64      `json:"scale"`
	}

	// State is a read-only copy of everything a renderer needs.
	State struct {
		Items        []PlacedItem `json:"items"`
		Selection    []string     `json:"selection"`
		ZoomScale    float64      `json:"zoomScale"`
		CanUndo      bool         `json:"canUndo"`
		CanRedo      bool         `json:"canRedo"`
		PastLength   int          `json:"pastLength"`
		FutureLength int          `json:"futureLength"`
		Revision     uint64       `json:"revision"`
	}

	Option func(*Engine)

	Engine struct {
		items     []PlacedItem
		selection []string
		zoom      float64
		history   *History

		ids IDSource
		rnd RandomSource

		revision uint64
	}
)

// WithIDSource replaces the ULID generator used for new item ids.
func WithIDSource(src IDSource) Option {
	return func(e *Engine) {
		if src != nil {
			e.ids = src
		}
	}
}

// WithRandomSource replaces the source of placement jitter.
func WithRandomSource(src RandomSource) Option {
	return func(e *Engine) {
		if src != nil {
			e.rnd = src
		}
	}
}

// New returns an empty engine at default zoom.
func New(opts ...Option) *Engine {
	e := &Engine{
		zoom:    DefaultZoom,
		history: NewHistory(MaxHistory),
		ids:     ULIDSource(),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Items returns a copy of the placed items in z-order.
func (e *Engine) Items() []PlacedItem {
	return cloneItems(e.items)
}

// Item looks up a placed item by id.
func (e *Engine) Item(id string) (PlacedItem, bool) {
	i := e.indexOf(id)
	if i < 0 {
		return PlacedItem{}, false
	}
	return e.items[i], true
}

func (e *Engine) Len() int {
	return len(e.items)
}

// Revision increases on every observable state change, including selection
// and zoom. Observers compare revisions to decide whether to persist.
func (e *Engine) Revision() uint64 {
	return e.revision
}

// State returns an independent copy of the current state.
func (e *Engine) State() State {
	return State{
		Items:        e.Items(),
		Selection:    e.Selection(),
		ZoomScale:    e.zoom,
		CanUndo:      e.history.CanUndo(),
		CanRedo:      e.history.CanRedo(),
		PastLength:   e.history.PastLen(),
		FutureLength: e.history.FutureLen(),
		Revision:     e.revision,
	}
}

// CanUndo reports whether Undo would change anything.
func (e *Engine) CanUndo() bool {
	return e.history.CanUndo()
}

// CanRedo reports whether Redo would change anything.
func (e *Engine) CanRedo() bool {
	return e.history.CanRedo()
}

func (e *Engine) PastLen() int {
	return e.history.PastLen()
}

func (e *Engine) FutureLen() int {
	return e.history.FutureLen()
}

func (e *Engine) indexOf(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(e.items, func(it PlacedItem) bool { return it.ID == id })
}

func (e *Engine) changed() {
	e.revision++
}

// pushHistory records the current items before a mutation and drops the
// redo branch.
func (e *Engine) pushHistory() {
	e.history.Push(cloneItems(e.items))
}

func (e *Engine) jitter() float64 {
	return float64(e.rnd.Intn(2*jitterRange+1) - jitterRange)
}

func cloneItems(items []PlacedItem) []PlacedItem {
	if items == nil {
		return []PlacedItem{}
	}
	return slices.Clone(items)
}

func (p Position) add(d Position) Position {
	return Position{X: p.X + d.X, Y: p.Y + d.Y}
}

func (p Position) finite() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// ClampScale bounds an item scale to [MinItemScale, MaxItemScale].
func ClampScale(v float64) float64 {
	return clamp(v, MinItemScale, MaxItemScale)
}

// ClampZoom bounds a zoom value to [MinZoom, MaxZoom].
func ClampZoom(v float64) float64 {
	return clamp(v, MinZoom, MaxZoom)
}

// snapshotProduct copies the catalog record so later catalog edits cannot
// reach placed items through the shared dimensions pointer.
func snapshotProduct(p core.Product) core.Product {
	if p.Dimensions != nil {
		d := *p.Dimensions
		p.Dimensions = &d
	}
	return p
}
