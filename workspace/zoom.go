package workspace

import "math"

func (e *Engine) ZoomScale() float64 {
	return e.zoom
}

// SetZoomScale sets the view zoom, clamped to [MinZoom, MaxZoom]. Zoom is not
// recorded in history.
func (e *Engine) SetZoomScale(v float64) {
	v = ClampZoom(v)
	if v == e.zoom {
		return
	}
	e.zoom = v
	e.changed()
}

func (e *Engine) ZoomIn() {
	e.SetZoomScale(roundStep(e.zoom + ZoomStep))
}

func (e *Engine) ZoomOut() {
	e.SetZoomScale(roundStep(e.zoom - ZoomStep))
}

func (e *Engine) ResetZoom() {
	e.SetZoomScale(DefaultZoom)
}

// roundStep keeps repeated ±0.1 steps on exact hundredths.
func roundStep(v float64) float64 {
	return math.Round(v*100) / 100
}
