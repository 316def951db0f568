package workspace

// ResizeSensitivity is the scale change per screen pixel of horizontal drag.
const ResizeSensitivity = 0.005

// CanvasDelta converts a pointer delta in screen pixels to canvas space.
func CanvasDelta(screen Position, zoom float64) Position {
	zoom = ClampZoom(zoom)
	return Position{X: screen.X / zoom, Y: screen.Y / zoom}
}

// ResizeScale computes the absolute scale for a resize gesture that started
// at startScale and has been dragged deltaX pixels.
func ResizeScale(startScale, deltaX float64) float64 {
	return ClampScale(startScale + deltaX*ResizeSensitivity)
}
