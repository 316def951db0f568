package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrEmptySnapshot is returned by Decode for missing data.
var ErrEmptySnapshot = errors.New("empty workspace snapshot")

// Persisted is the durable shape of an engine. Selection is deliberately
// absent; a reloaded workspace starts with nothing selected.
type Persisted struct {
	Items     []PlacedItem   `json:"items"`
	Past      [][]PlacedItem `json:"past"`
	Future    [][]PlacedItem `json:"future"`
	ZoomScale float64        `json:"zoomScale"`
}

// Export copies the persistable state.
func (e *Engine) Export() Persisted {
	return Persisted{
		Items:     e.Items(),
		Past:      e.history.Past(),
		Future:    e.history.Future(),
		ZoomScale: e.zoom,
	}
}

// Restore replaces the whole engine state with p after sanitizing it.
func (e *Engine) Restore(p Persisted) {
	e.items = sanitizeItems(p.Items)
	e.selection = nil

	past := make([][]PlacedItem, 0, len(p.Past))
	for _, snapshot := range p.Past {
		past = append(past, sanitizeItems(snapshot))
	}
	future := make([][]PlacedItem, 0, len(p.Future))
	for _, snapshot := range p.Future {
		future = append(future, sanitizeItems(snapshot))
	}
	e.history.reset(past, future)

	zoom := p.ZoomScale
	if zoom == 0 || math.IsNaN(zoom) {
		zoom = DefaultZoom
	}
	e.zoom = ClampZoom(zoom)
	e.changed()
}

// Encode serializes a persisted state as JSON.
func Encode(p Persisted) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode workspace snapshot: %w", err)
	}
	return data, nil
}

// Decode parses data produced by Encode.
func Decode(data []byte) (Persisted, error) {
	var p Persisted
	if len(data) == 0 {
		return p, ErrEmptySnapshot
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return Persisted{}, fmt.Errorf("decode workspace snapshot: %w", err)
	}
	return p, nil
}

// Load builds an engine from encoded data. A missing or corrupt snapshot
// yields an empty engine together with the decode error, so callers can log
// it and carry on.
func Load(data []byte, opts ...Option) (*Engine, error) {
	e := New(opts...)
	p, err := Decode(data)
	if err != nil {
		return e, err
	}
	e.Restore(p)
	return e, nil
}
