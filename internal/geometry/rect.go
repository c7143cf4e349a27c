package geometry

// Size captures pixel dimensions of a container or design reference.
type Size struct {
	Width  float64
	Height float64
}

// IsZero reports whether either dimension is missing.
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Point is a pixel-space coordinate pair.
type Point struct {
	X float64
	Y float64
}

// Rect is a rectangle expressed either in pixels or in percent of a reference
// container, depending on context. Percent-space rectangles keep each
// component in [0, 100] with X+Width <= 100 and Y+Height <= 100 outside of a
// live gesture.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// PercentFromPixels converts a pixel rectangle into percent space against the
// design reference size.
func PercentFromPixels(pixels Rect, reference Size) Rect {
	if reference.IsZero() {
		return Rect{}
	}
	return Rect{
		X:      pixels.X / reference.Width * 100,
		Y:      pixels.Y / reference.Height * 100,
		Width:  pixels.Width / reference.Width * 100,
		Height: pixels.Height / reference.Height * 100,
	}
}

// PixelsFromPercent converts a percent rectangle back to pixels against the
// design reference size. The reference is always the design size, never the
// live container.
func PixelsFromPercent(percent Rect, reference Size) Rect {
	return Rect{
		X:      percent.X / 100 * reference.Width,
		Y:      percent.Y / 100 * reference.Height,
		Width:  percent.Width / 100 * reference.Width,
		Height: percent.Height / 100 * reference.Height,
	}
}

func clamp(value, low, high float64) float64 {
	if high < low {
		high = low
	}
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
