package database

import (
	"encoding/json"
	"fmt"

	"github.com/InkLedgerLabs/certmark/backend/internal/builder"
)

// DecodeAnnotation rebuilds the typed annotation from a stored row using the
// kind discriminant.
func DecodeAnnotation(record AnnotationRecord) (builder.Annotation, error) {
	switch builder.Kind(record.Kind) {
	case builder.KindColumn:
		var annotation builder.ColumnAnnotation
		if err := json.Unmarshal([]byte(record.PayloadJSON), &annotation); err != nil {
			return nil, fmt.Errorf("decode column annotation %s: %w", record.AnnotationID, err)
		}
		return &annotation, nil
	case builder.KindSignature:
		var annotation builder.SignatureAnnotation
		if err := json.Unmarshal([]byte(record.PayloadJSON), &annotation); err != nil {
			return nil, fmt.Errorf("decode signature annotation %s: %w", record.AnnotationID, err)
		}
		return &annotation, nil
	default:
		return nil, fmt.Errorf("unknown annotation kind %q", record.Kind)
	}
}

// DecodeAnnotationsByPage groups decoded annotations by page.
func DecodeAnnotationsByPage(records []AnnotationRecord) (map[int][]builder.Annotation, error) {
	byPage := make(map[int][]builder.Annotation)
	for _, record := range records {
		annotation, err := DecodeAnnotation(record)
		if err != nil {
			return nil, err
		}
		byPage[record.Page] = append(byPage[record.Page], annotation)
	}
	return byPage, nil
}
