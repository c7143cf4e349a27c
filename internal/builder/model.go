// Package builder owns the canonical annotation state of one certificate
// project: typed annotations per template page, derived per-kind partitions,
// permission-gated mutations and the change events they produce.
package builder

import (
	"github.com/InkLedgerLabs/certmark/backend/internal/geometry"
)

// Kind discriminates the annotation union.
type Kind string

const (
	// KindColumn is a data-bound text field backed by a spreadsheet column.
	KindColumn Kind = "column"
	// KindSignature is a signature placeholder bound to a signer email.
	KindSignature Kind = "signature"
)

// SignatureStatus tracks a signature placeholder through its lifecycle. The
// only valid transitions are not_invited -> invited -> signed; going back
// requires removing and recreating the annotation.
type SignatureStatus string

const (
	StatusNotInvited SignatureStatus = "not_invited"
	StatusInvited    SignatureStatus = "invited"
	StatusSigned     SignatureStatus = "signed"
)

// Base carries the fields shared by every annotation kind. Position and size
// are pixel values against the template page's design reference size.
type Base struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Color  string  `json:"color"`
}

// AnnotationID returns the opaque unique identifier assigned at creation.
func (b *Base) AnnotationID() string {
	return b.ID
}

// Bounds returns the pixel rectangle of the annotation.
func (b *Base) Bounds() geometry.Rect {
	return geometry.Rect{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

func (b *Base) setPosition(rect geometry.Rect) {
	b.X = rect.X
	b.Y = rect.Y
}

func (b *Base) setBounds(rect geometry.Rect) {
	b.X = rect.X
	b.Y = rect.Y
	b.Width = rect.Width
	b.Height = rect.Height
}

// ColumnAnnotation binds a rectangle to a spreadsheet column title.
type ColumnAnnotation struct {
	Base
	Type           Kind    `json:"type"`
	Value          string  `json:"value"`
	FontName       string  `json:"fontName"`
	FontSize       float64 `json:"fontSize"`
	FontWeight     string  `json:"fontWeight"`
	FontColor      string  `json:"fontColor"`
	TextFitRectBox bool    `json:"textFitRectBox"`
}

// Kind implements Annotation.
func (*ColumnAnnotation) Kind() Kind {
	return KindColumn
}

func (c *ColumnAnnotation) clone() Annotation {
	copied := *c
	return &copied
}

// SignatureAnnotation reserves a rectangle for a signer's signature image.
type SignatureAnnotation struct {
	Base
	Type          Kind            `json:"type"`
	Email         string          `json:"email"`
	Status        SignatureStatus `json:"status"`
	SignatureData *string         `json:"signatureData"`
}

// Kind implements Annotation.
func (*SignatureAnnotation) Kind() Kind {
	return KindSignature
}

func (s *SignatureAnnotation) clone() Annotation {
	copied := *s
	if s.SignatureData != nil {
		data := *s.SignatureData
		copied.SignatureData = &data
	}
	return &copied
}

// Annotation is the closed union of placeable overlay kinds.
type Annotation interface {
	Kind() Kind
	AnnotationID() string
	Bounds() geometry.Rect

	clone() Annotation
}

const (
	defaultColor      = "#2F80ED"
	defaultFontName   = "Helvetica"
	defaultFontSize   = 16.0
	defaultFontWeight = "normal"
	defaultFontColor  = "#000000"

	defaultColumnWidth     = 160.0
	defaultColumnHeight    = 40.0
	defaultSignatureWidth  = 180.0
	defaultSignatureHeight = 80.0
)

// ColumnDraft is the caller-supplied field set for a column annotation. Zero
// size and style fields fall back to the column defaults on creation; updates
// apply the draft wholesale.
type ColumnDraft struct {
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	Color          string  `json:"color"`
	Value          string  `json:"value"`
	FontName       string  `json:"fontName"`
	FontSize       float64 `json:"fontSize"`
	FontWeight     string  `json:"fontWeight"`
	FontColor      string  `json:"fontColor"`
	TextFitRectBox bool    `json:"textFitRectBox"`
}

// SignatureDraft is the caller-supplied field set for a signature annotation.
type SignatureDraft struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Color  string  `json:"color"`
	Email  string  `json:"email"`
}

func newColumnAnnotation(id string, draft ColumnDraft) *ColumnAnnotation {
	annotation := &ColumnAnnotation{
		Base: Base{
			ID:     id,
			X:      draft.X,
			Y:      draft.Y,
			Width:  draft.Width,
			Height: draft.Height,
			Color:  draft.Color,
		},
		Type:           KindColumn,
		Value:          draft.Value,
		FontName:       draft.FontName,
		FontSize:       draft.FontSize,
		FontWeight:     draft.FontWeight,
		FontColor:      draft.FontColor,
		TextFitRectBox: draft.TextFitRectBox,
	}
	if annotation.Width <= 0 {
		annotation.Width = defaultColumnWidth
	}
	if annotation.Height <= 0 {
		annotation.Height = defaultColumnHeight
	}
	if annotation.Color == "" {
		annotation.Color = defaultColor
	}
	if annotation.FontName == "" {
		annotation.FontName = defaultFontName
	}
	if annotation.FontSize <= 0 {
		annotation.FontSize = defaultFontSize
	}
	if annotation.FontWeight == "" {
		annotation.FontWeight = defaultFontWeight
	}
	if annotation.FontColor == "" {
		annotation.FontColor = defaultFontColor
	}
	return annotation
}

func newSignatureAnnotation(id string, draft SignatureDraft) *SignatureAnnotation {
	annotation := &SignatureAnnotation{
		Base: Base{
			ID:     id,
			X:      draft.X,
			Y:      draft.Y,
			Width:  draft.Width,
			Height: draft.Height,
			Color:  draft.Color,
		},
		Type:          KindSignature,
		Email:         draft.Email,
		Status:        StatusNotInvited,
		SignatureData: nil,
	}
	if annotation.Width <= 0 {
		annotation.Width = defaultSignatureWidth
	}
	if annotation.Height <= 0 {
		annotation.Height = defaultSignatureHeight
	}
	if annotation.Color == "" {
		annotation.Color = defaultColor
	}
	return annotation
}
