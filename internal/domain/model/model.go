// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/breedid/internal/domain/catalog"
)

// Source tells how an image reached the pipeline.
type Source int

const (
	// SourcePicker is a file-picker selection; only size is checked.
	SourcePicker Source = iota
	// SourceDrop is a drag-and-drop; size and media type are checked.
	SourceDrop
)

func (s Source) String() string {
	switch s {
	case SourcePicker:
		return "picker"
	case SourceDrop:
		return "drop"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// ParseSource maps "picker" (or empty) and "drop" to a Source.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "picker":
		return SourcePicker, nil
	case "drop":
		return SourceDrop, nil
	default:
		return 0, fmt.Errorf("unknown image source %q", s)
	}
}

// Image is an uploaded image held for one identification attempt.
type Image struct {
	ID         string    // generated when accepted
	Filename   string    // as supplied by the client
	MediaType  string    // declared, not sniffed
	Size       int64     // byte size as declared by the intake
	Data       []byte    // payload, served back as the preview
	UploadedAt time.Time // acceptance time
}

// Prediction is one ranked candidate of an identification run.
// Name and characteristics are copied from the catalog at prediction time.
type Prediction struct {
	BreedID         string                  `json:"breed_id"`
	BreedName       string                  `json:"breed_name"`
	Confidence      float64                 `json:"confidence"`
	Characteristics catalog.Characteristics `json:"characteristics"`
}

// NoticeKind classifies user-facing notices.
type NoticeKind string

// Notice kinds.
const (
	NoticeFileTooLarge           NoticeKind = "file_too_large"
	NoticeIdentificationComplete NoticeKind = "identification_complete"
)

// Notice is a transient, user-facing message (the front-end shows it as a toast).
type Notice struct {
	SessionID   string     `json:"-"`
	Kind        NoticeKind `json:"kind"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Destructive bool       `json:"destructive"`
	At          time.Time  `json:"at"`
}
