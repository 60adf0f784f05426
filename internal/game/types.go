package game

import (
	"time"

	"github.com/kiliankoe/sketchdash/internal/ai"
)

type Phase string

const (
	PhaseIdle      Phase = "Idle"
	PhaseCountdown Phase = "Countdown"
	PhasePlaying   Phase = "Playing"
	PhaseCompleted Phase = "Completed"
)

// Config holds the timing and win rules of a session.
type Config struct {
	CountdownFrom  int           `json:"countdownFrom"`
	CountdownTick  time.Duration `json:"countdownTick"`
	ElapsedTick    time.Duration `json:"elapsedTick"`
	PollInterval   time.Duration `json:"pollInterval"`
	MaxTime        time.Duration `json:"maxTime"`
	WinConfidence  float64       `json:"winConfidence"`
	FallbackPrompt string        `json:"fallbackPrompt"`
	SaveTimeout    time.Duration `json:"saveTimeout"`
}

func DefaultConfig() Config {
	return Config{
		CountdownFrom:  3,
		CountdownTick:  time.Second,
		ElapsedTick:    100 * time.Millisecond,
		PollInterval:   time.Second,
		MaxTime:        60 * time.Second,
		WinConfidence:  0.9,
		FallbackPrompt: "cat",
		SaveTimeout:    10 * time.Second,
	}
}

// Result is the outcome of one finished session.
type Result struct {
	Success     bool    `json:"success"`
	Word        string  `json:"word"`
	TimeElapsed float64 `json:"timeElapsed"`
	Confidence  float64 `json:"confidenceLevel"`
	Rating      int     `json:"rating"`
	ImageURL    string  `json:"imageUrl"`
	Saved       bool    `json:"saved"`
	Image       []byte  `json:"-"`
}

// State is a copy of a session's fields handed to observers.
type State struct {
	Phase       Phase           `json:"phase"`
	Prompt      string          `json:"prompt"`
	Elapsed     float64         `json:"elapsedSeconds"`
	Countdown   int             `json:"countdownValue"`
	Snapshot    []byte          `json:"-"`
	Predictions []ai.Prediction `json:"predictions"`
	Result      *Result         `json:"result,omitempty"`
}

func (st State) clone() State {
	out := st
	if st.Predictions != nil {
		out.Predictions = append([]ai.Prediction(nil), st.Predictions...)
	}
	if st.Result != nil {
		r := *st.Result
		out.Result = &r
	}
	return out
}
