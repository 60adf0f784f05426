package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/kiliankoe/sketchdash/internal/ai"
)

// MaxDisplayPredictions caps the guess list shown while drawing.
const MaxDisplayPredictions = 3

// View is what the client renders. It is derived from State and nothing else.
type View struct {
	Phase          Phase           `json:"phase"`
	Prompt         string          `json:"prompt"`
	Countdown      int             `json:"countdown"`
	Elapsed        float64         `json:"elapsed"`
	TimerText      string          `json:"timerText"`
	CanvasDisabled bool            `json:"canvasDisabled"`
	Predictions    []ai.Prediction `json:"predictions"`
	Thinking       bool            `json:"thinking"`
	Result         *ResultView     `json:"result,omitempty"`
}

type ResultView struct {
	Success    bool    `json:"success"`
	Word       string  `json:"word"`
	Time       float64 `json:"timeElapsed"`
	Confidence float64 `json:"confidenceLevel"`
	Rating     int     `json:"rating"`
	Stars      string  `json:"stars"`
	ImageURL   string  `json:"imageUrl"`
	Saved      bool    `json:"saved"`
	Headline   string  `json:"headline"`
	ShareText  string  `json:"shareText"`
}

// Present builds the client view for st. now dates the share text.
func Present(st State, now time.Time) View {
	v := View{
		Phase:          st.Phase,
		Prompt:         st.Prompt,
		Countdown:      st.Countdown,
		Elapsed:        st.Elapsed,
		TimerText:      fmt.Sprintf("%.1fs", st.Elapsed),
		CanvasDisabled: st.Phase != PhasePlaying,
		Predictions:    ai.FilterForDisplay(st.Predictions, ai.DisplayThreshold, MaxDisplayPredictions),
	}
	v.Thinking = st.Phase == PhasePlaying && len(v.Predictions) == 0
	if st.Result != nil {
		v.Result = presentResult(*st.Result, now)
	}
	return v
}

func presentResult(r Result, now time.Time) *ResultView {
	rv := &ResultView{
		Success:    r.Success,
		Word:       r.Word,
		Time:       r.TimeElapsed,
		Confidence: r.Confidence,
		Rating:     r.Rating,
		Stars:      Stars(r.Rating),
		ImageURL:   r.ImageURL,
		Saved:      r.Saved,
	}
	if r.Success {
		rv.Headline = fmt.Sprintf("The AI recognized your %s in %.1f seconds!", r.Word, r.TimeElapsed)
	} else {
		rv.Headline = fmt.Sprintf("The AI couldn't recognize your drawing of %q in time. Want to share your masterpiece anyways?", r.Word)
	}
	rv.ShareText = ShareText(r, now)
	return rv
}

// ShareText is the message offered in the share dialog.
func ShareText(r Result, now time.Time) string {
	date := now.Format("2006-01-02")
	if !r.Success {
		return fmt.Sprintf("SketchDash %s: I tried to draw '%s'. Can you do better?", date, r.Word)
	}
	return fmt.Sprintf("SketchDash %s: Drew '%s' in %.1fs with a %d-star rating! Beat me!", date, r.Word, r.TimeElapsed, r.Rating)
}

// Stars renders a 0-5 rating as filled and empty stars.
func Stars(rating int) string {
	rating = min(max(rating, 0), 5)
	return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
}
