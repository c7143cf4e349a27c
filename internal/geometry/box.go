package geometry

import (
	"errors"
	"sync"
)

var (
	// ErrMissingOriginalSize indicates that the design reference size was not provided.
	ErrMissingOriginalSize = errors.New("geometry: original size is required")
)

// SizeProvider exposes the live dimensions of a responsive container. The
// provider is read on every pointer move so the gesture tracks container
// resizes mid-gesture.
type SizeProvider interface {
	ClientWidth() float64
	ClientHeight() float64
}

// HitTarget identifies which part of a box a pointer-down landed on.
type HitTarget int

const (
	// TargetBody starts a drag gesture.
	TargetBody HitTarget = iota
	// TargetResizeHandle starts a resize gesture.
	TargetResizeHandle
)

type gestureState int

const (
	stateIdle gestureState = iota
	stateDragging
	stateResizing
)

// DragPayload carries the box position in both percent and pixel space. Pixel
// values are derived from the design reference size, never the live container.
type DragPayload struct {
	XPercent float64
	YPercent float64
	XPx      float64
	YPx      float64
}

// ResizePayload carries the full box rectangle in both percent and pixel space.
type ResizePayload struct {
	WidthPercent  float64
	HeightPercent float64
	XPercent      float64
	YPercent      float64
	WidthPx       float64
	HeightPx      float64
	XPx           float64
	YPx           float64
}

// DragCallback observes a drag lifecycle event.
type DragCallback func(event PointerEvent, payload DragPayload)

// ResizeCallback observes a resize lifecycle event.
type ResizeCallback func(event PointerEvent, payload ResizePayload)

// BoxConfig configures a gesture-tracked box. Position, Size and the minimum
// dimensions are pixel values against OriginalSize.
type BoxConfig struct {
	Position     Point
	Size         Size
	OriginalSize Size
	MinWidth     float64
	MinHeight    float64

	// Container supplies the live dimensions used to convert pointer deltas
	// into percent deltas. Fallback is consulted when Container is nil or
	// reports a collapsed size; OriginalSize is the last resort.
	Container SizeProvider
	Fallback  SizeProvider

	LockResizeX    bool
	LockResizeY    bool
	DragDisabled   bool
	ResizeDisabled bool

	OnDragStart DragCallback
	OnDrag      DragCallback
	OnDragStop  DragCallback

	OnResizeStart ResizeCallback
	OnResize      ResizeCallback
	OnResizeStop  ResizeCallback
}

// Box translates pointer gestures over a responsive container into
// percent-space rectangles. One Box exists per rendered overlay; its state
// machine is Idle, Dragging or Resizing, and the three states are mutually
// exclusive.
type Box struct {
	mu sync.Mutex

	config BoxConfig

	percent      Rect
	minWidthPct  float64
	minHeightPct float64

	state        gestureState
	startPointer Point
	startRect    Rect
}

// NewBox validates the configuration and derives the initial percent
// rectangle from the pixel position and size.
func NewBox(config BoxConfig) (*Box, error) {
	if config.OriginalSize.IsZero() {
		return nil, ErrMissingOriginalSize
	}

	box := &Box{config: config}
	box.percent = PercentFromPixels(Rect{
		X:      config.Position.X,
		Y:      config.Position.Y,
		Width:  config.Size.Width,
		Height: config.Size.Height,
	}, config.OriginalSize)

	if config.MinWidth > 0 {
		box.minWidthPct = config.MinWidth / config.OriginalSize.Width * 100
	}
	if config.MinHeight > 0 {
		box.minHeightPct = config.MinHeight / config.OriginalSize.Height * 100
	}

	return box, nil
}

// Rect returns the current percent-space rectangle.
func (b *Box) Rect() Rect {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.percent
}

// Active reports whether a gesture is in progress, i.e. whether the global
// move/up listeners are held.
func (b *Box) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state != stateIdle
}

// PointerDown enters Dragging or Resizing depending on the hit target. A
// pointer-down on the resize handle never starts a drag. Disabled gestures
// are ignored.
func (b *Box) PointerDown(event PointerEvent, target HitTarget) {
	b.mu.Lock()
	if b.state != stateIdle {
		b.mu.Unlock()
		return
	}

	switch target {
	case TargetResizeHandle:
		if b.config.ResizeDisabled {
			b.mu.Unlock()
			return
		}
		b.state = stateResizing
		b.startPointer = event.point()
		b.startRect = b.percent
		callback := b.config.OnResizeStart
		payload := b.resizePayloadLocked()
		b.mu.Unlock()
		if callback != nil {
			callback(event, payload)
		}
	case TargetBody:
		if b.config.DragDisabled {
			b.mu.Unlock()
			return
		}
		b.state = stateDragging
		b.startPointer = event.point()
		b.startRect = b.percent
		callback := b.config.OnDragStart
		payload := b.dragPayloadLocked()
		b.mu.Unlock()
		if callback != nil {
			callback(event, payload)
		}
	default:
		b.mu.Unlock()
	}
}

// PointerMove advances an active gesture. Moves while idle are ignored; the
// move/up listeners are only attached during a gesture.
func (b *Box) PointerMove(event PointerEvent) {
	b.mu.Lock()
	switch b.state {
	case stateDragging:
		b.applyDragLocked(event)
		callback := b.config.OnDrag
		payload := b.dragPayloadLocked()
		b.mu.Unlock()
		if callback != nil {
			callback(event, payload)
		}
	case stateResizing:
		b.applyResizeLocked(event)
		callback := b.config.OnResize
		payload := b.resizePayloadLocked()
		b.mu.Unlock()
		if callback != nil {
			callback(event, payload)
		}
	default:
		b.mu.Unlock()
	}
}

// PointerUp finishes the active gesture, fires the matching stop callback
// with the final rectangle and releases all gesture state.
func (b *Box) PointerUp(event PointerEvent) {
	b.finishGesture(event, true)
}

// PointerCancel handles a cancelled touch sequence. The gesture ends exactly
// as on pointer-up so the rectangle invariants are restored.
func (b *Box) PointerCancel(event PointerEvent) {
	b.finishGesture(event, true)
}

// Interrupt abandons the active gesture without firing callbacks. Used on
// component teardown, where the callback receivers are already gone.
func (b *Box) Interrupt() {
	b.mu.Lock()
	b.state = stateIdle
	b.startPointer = Point{}
	b.startRect = Rect{}
	b.mu.Unlock()
}

func (b *Box) finishGesture(event PointerEvent, fireCallbacks bool) {
	b.mu.Lock()
	state := b.state
	b.state = stateIdle
	b.startPointer = Point{}
	b.startRect = Rect{}

	switch state {
	case stateDragging:
		callback := b.config.OnDragStop
		payload := b.dragPayloadLocked()
		b.mu.Unlock()
		if fireCallbacks && callback != nil {
			callback(event, payload)
		}
	case stateResizing:
		callback := b.config.OnResizeStop
		payload := b.resizePayloadLocked()
		b.mu.Unlock()
		if fireCallbacks && callback != nil {
			callback(event, payload)
		}
	default:
		b.mu.Unlock()
	}
}

func (b *Box) applyDragLocked(event PointerEvent) {
	container := b.containerSizeLocked()
	deltaX := (event.ClientX - b.startPointer.X) / container.Width * 100
	deltaY := (event.ClientY - b.startPointer.Y) / container.Height * 100

	b.percent.X = clamp(b.startRect.X+deltaX, 0, 100-b.percent.Width)
	b.percent.Y = clamp(b.startRect.Y+deltaY, 0, 100-b.percent.Height)
}

func (b *Box) applyResizeLocked(event PointerEvent) {
	container := b.containerSizeLocked()
	deltaX := (event.ClientX - b.startPointer.X) / container.Width * 100
	deltaY := (event.ClientY - b.startPointer.Y) / container.Height * 100
	if b.config.LockResizeX {
		deltaX = 0
	}
	if b.config.LockResizeY {
		deltaY = 0
	}

	width := b.startRect.Width + deltaX
	if b.minWidthPct > 0 && width < b.minWidthPct {
		width = b.minWidthPct
	}
	// Bounds win over the minimum: a box near the edge may end up narrower
	// than the configured minimum.
	if b.startRect.X+width > 100 {
		width = 100 - b.startRect.X
	}

	height := b.startRect.Height + deltaY
	if b.minHeightPct > 0 && height < b.minHeightPct {
		height = b.minHeightPct
	}
	if b.startRect.Y+height > 100 {
		height = 100 - b.startRect.Y
	}

	// Resize is anchored bottom-right: position stays at the gesture start.
	b.percent.Width = width
	b.percent.Height = height
	b.percent.X = b.startRect.X
	b.percent.Y = b.startRect.Y
}

func (b *Box) containerSizeLocked() Size {
	if b.config.Container != nil {
		size := Size{Width: b.config.Container.ClientWidth(), Height: b.config.Container.ClientHeight()}
		if !size.IsZero() {
			return size
		}
	}
	if b.config.Fallback != nil {
		size := Size{Width: b.config.Fallback.ClientWidth(), Height: b.config.Fallback.ClientHeight()}
		if !size.IsZero() {
			return size
		}
	}
	return b.config.OriginalSize
}

func (b *Box) dragPayloadLocked() DragPayload {
	pixels := PixelsFromPercent(b.percent, b.config.OriginalSize)
	return DragPayload{
		XPercent: b.percent.X,
		YPercent: b.percent.Y,
		XPx:      pixels.X,
		YPx:      pixels.Y,
	}
}

func (b *Box) resizePayloadLocked() ResizePayload {
	pixels := PixelsFromPercent(b.percent, b.config.OriginalSize)
	return ResizePayload{
		WidthPercent:  b.percent.Width,
		HeightPercent: b.percent.Height,
		XPercent:      b.percent.X,
		YPercent:      b.percent.Y,
		WidthPx:       pixels.Width,
		HeightPx:      pixels.Height,
		XPx:           pixels.X,
		YPx:           pixels.Y,
	}
}
