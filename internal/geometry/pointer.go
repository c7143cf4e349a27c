package geometry

// PointerEvent is the normalized form of a mouse or touch event. All gesture
// math downstream of the adapters below is modality-agnostic.
type PointerEvent struct {
	ClientX float64
	ClientY float64
}

// MouseEvent mirrors the client coordinates of a browser mouse event.
type MouseEvent struct {
	ClientX float64
	ClientY float64
}

// TouchPoint mirrors a single touch contact.
type TouchPoint struct {
	ClientX float64
	ClientY float64
}

// TouchEvent mirrors the touch list of a browser touch event.
type TouchEvent struct {
	Touches []TouchPoint
}

// NormalizeMouse adapts a mouse event into a PointerEvent.
func NormalizeMouse(event MouseEvent) PointerEvent {
	return PointerEvent{ClientX: event.ClientX, ClientY: event.ClientY}
}

// NormalizeTouch adapts a touch event into a PointerEvent using the first
// touch point. Returns false when the touch list is empty.
func NormalizeTouch(event TouchEvent) (PointerEvent, bool) {
	if len(event.Touches) == 0 {
		return PointerEvent{}, false
	}
	first := event.Touches[0]
	return PointerEvent{ClientX: first.ClientX, ClientY: first.ClientY}, true
}

func (e PointerEvent) point() Point {
	return Point{X: e.ClientX, Y: e.ClientY}
}
