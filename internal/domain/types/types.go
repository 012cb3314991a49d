// Package types contains the views the API returns
package types

import (
	"fmt"
	"time"

	"github.com/okian/breedid/internal/domain/catalog"
	"github.com/okian/breedid/internal/domain/model"
	"github.com/okian/breedid/internal/domain/scoring"
)

// BreedList is a catalog search result
type BreedList struct {
	Breeds []catalog.BreedRecord `json:"breeds"`
	Total  int                   `json:"total"`
	Count  int                   `json:"count"`
	Query  string                `json:"query,omitempty"`
	Use    string                `json:"use,omitempty"`
}

// Summary renders the "Showing N of M breeds" line.
func (l BreedList) Summary() string {
	return fmt.Sprintf("Showing %d of %d breeds", l.Count, l.Total)
}

// RankedPrediction is a prediction with its position and display tier
type RankedPrediction struct {
	Rank int `json:"rank"`
	model.Prediction
	Tier scoring.Tier `json:"tier"`
}

// RankPredictions numbers predictions from 1 and attaches tiers.
func RankPredictions(preds []model.Prediction) []RankedPrediction {
	if preds == nil {
		return nil
	}
	out := make([]RankedPrediction, len(preds))
	for i, p := range preds {
		out[i] = RankedPrediction{
			Rank:       i + 1,
			Prediction: p,
			Tier:       scoring.ConfidenceTier(p.Confidence),
		}
	}
	return out
}

// ImageView describes the held image
type ImageView struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	MediaType  string    `json:"media_type"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// SessionView is the rendering contract of one session
type SessionView struct {
	ID         string             `json:"id"`
	State      string             `json:"state"`
	RunID      uint64             `json:"run_id"`
	CreatedAt  time.Time          `json:"created_at"`
	Image      *ImageView         `json:"image,omitempty"`
	PreviewURL string             `json:"preview_url,omitempty"`
	Results    []RankedPrediction `json:"results,omitempty"`
	Notices    []model.Notice     `json:"notices,omitempty"`
}

// SubmitResult is the outcome of an image upload
type SubmitResult struct {
	Accepted bool        `json:"accepted"`
	Ignored  bool        `json:"ignored,omitempty"`
	Session  SessionView `json:"session"`
}

// IdentifyResult is the outcome of an identify request
type IdentifyResult struct {
	Scheduled bool        `json:"scheduled"`
	Completed bool        `json:"completed"`
	Session   SessionView `json:"session"`
}
