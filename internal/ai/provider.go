package ai

import (
	"context"
	"sort"
)

// Prediction is a single ranked guess from a recognizer.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Recognizer guesses what an image shows. Implementations must return the
// predictions sorted by descending confidence.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, target string) ([]Prediction, error)
}

// DisplayThreshold is the minimum confidence a prediction needs to be shown.
const DisplayThreshold = 0.1

// SortPredictions orders preds in place, highest confidence first.
func SortPredictions(preds []Prediction) {
	sort.SliceStable(preds, func(i, j int) bool {
		return preds[i].Confidence > preds[j].Confidence
	})
}

// FilterForDisplay returns a sorted copy of preds without entries below
// threshold, capped at max entries (max <= 0 means no cap).
func FilterForDisplay(preds []Prediction, threshold float64, max int) []Prediction {
	out := make([]Prediction, 0, len(preds))
	for _, p := range preds {
		if p.Confidence >= threshold {
			out = append(out, p)
		}
	}
	SortPredictions(out)
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
