package game

import (
	"errors"
	"time"

	"github.com/kiliankoe/sketchdash/internal/ai"
	"github.com/kiliankoe/sketchdash/internal/canvas"
)

var (
	ErrSessionActive = errors.New("session already in progress")
	ErrSessionClosed = errors.New("session closed")
	ErrInvalidPhase  = errors.New("invalid phase for action")
)

// machine holds the transition rules. It does no I/O and owns no timers;
// the session loop drives it.
type machine struct {
	cfg   Config
	state State
}

func newMachine(cfg Config) *machine {
	return &machine{cfg: cfg, state: State{Phase: PhaseIdle}}
}

// start resets every field and enters the countdown.
func (m *machine) start(word string) error {
	if m.state.Phase == PhaseCountdown || m.state.Phase == PhasePlaying {
		return ErrSessionActive
	}
	m.state = State{
		Phase:     PhaseCountdown,
		Prompt:    word,
		Countdown: m.cfg.CountdownFrom,
	}
	return nil
}

// tickCountdown reports whether the countdown just reached zero and play began.
func (m *machine) tickCountdown() bool {
	if m.state.Phase != PhaseCountdown {
		return false
	}
	if m.state.Countdown <= 1 {
		m.state.Countdown = 0
		m.state.Phase = PhasePlaying
		return true
	}
	m.state.Countdown--
	return false
}

// setElapsed records play time at 0.1s granularity and reports whether the
// time limit was hit.
func (m *machine) setElapsed(d time.Duration) bool {
	if m.state.Phase != PhasePlaying {
		return false
	}
	if d >= m.cfg.MaxTime {
		m.state.Elapsed = m.cfg.MaxTime.Seconds()
		return true
	}
	m.state.Elapsed = float64(d/(100*time.Millisecond)) / 10
	return false
}

func (m *machine) setSnapshot(png []byte) {
	if m.state.Phase != PhasePlaying {
		return
	}
	m.state.Snapshot = png
}

// applyPredictions stores preds and reports a winning confidence, if any.
// Stale results are stored in any phase but only win while playing.
func (m *machine) applyPredictions(preds []ai.Prediction) (bool, float64) {
	sorted := append([]ai.Prediction(nil), preds...)
	ai.SortPredictions(sorted)
	m.state.Predictions = sorted
	if m.state.Phase != PhasePlaying {
		return false, 0
	}
	for _, p := range sorted {
		if p.Label == m.state.Prompt && p.Confidence >= m.cfg.WinConfidence {
			return true, p.Confidence
		}
	}
	return false, 0
}

// complete is the only way into Completed. A second call is a no-op.
func (m *machine) complete(success bool, confidence float64) bool {
	if m.state.Phase != PhasePlaying {
		return false
	}
	m.state.Phase = PhaseCompleted
	r := &Result{
		Success:     success,
		Word:        m.state.Prompt,
		TimeElapsed: m.state.Elapsed,
		Confidence:  confidence,
		Rating:      Rating(success, confidence, m.state.Elapsed),
		Image:       m.state.Snapshot,
	}
	if len(r.Image) > 0 {
		r.ImageURL = canvas.EncodeDataURL(r.Image)
	}
	m.state.Result = r
	return true
}

// markSaved points the result at its durable copy.
func (m *machine) markSaved(imageURL string) {
	if m.state.Result == nil {
		return
	}
	m.state.Result.ImageURL = imageURL
	m.state.Result.Saved = true
}
