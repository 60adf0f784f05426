package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kiliankoe/sketchdash/internal/ai"
)

type fixedPrompt string

func (p fixedPrompt) DailyWord(context.Context) (string, error) { return string(p), nil }

type failingPrompt struct{}

func (failingPrompt) DailyWord(context.Context) (string, error) {
	return "", errors.New("no prompts available")
}

type rotatingPrompt struct {
	mu    sync.Mutex
	words []string
	i     int
}

func (p *rotatingPrompt) DailyWord(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := p.words[p.i%len(p.words)]
	p.i++
	return w, nil
}

// scriptedRecognizer answers call n with script(n), optionally after a delay
// on the given clock.
type scriptedRecognizer struct {
	clock   clockwork.Clock
	latency time.Duration
	script  func(n int) ([]ai.Prediction, error)
	called  chan int

	mu    sync.Mutex
	calls int
}

func (r *scriptedRecognizer) Recognize(ctx context.Context, image []byte, target string) ([]ai.Prediction, error) {
	r.mu.Lock()
	r.calls++
	n := r.calls
	r.mu.Unlock()
	r.called <- n
	if r.latency > 0 {
		select {
		case <-r.clock.After(r.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.script(n)
}

type recordingSaver struct {
	mu    sync.Mutex
	saved []Result
	err   error
}

func (s *recordingSaver) SaveResult(ctx context.Context, r Result) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, r)
	return "http://localhost/sketches/" + r.Word + ".png", nil
}

func (s *recordingSaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type stateRecorder struct {
	ch chan State
}

func record(s *Session) *stateRecorder {
	r := &stateRecorder{ch: make(chan State, 4096)}
	s.Subscribe(func(st State) { r.ch <- st })
	return r
}

func (r *stateRecorder) waitFor(t *testing.T, desc string, pred func(State) bool) State {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case st := <-r.ch:
			if pred(st) {
				return st
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", desc)
		}
	}
}

func waitCall(t *testing.T, rec *scriptedRecognizer, want int) {
	t.Helper()
	select {
	case n := <-rec.called:
		if n != want {
			t.Fatalf("expected recognizer call %d, got %d", want, n)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for recognizer call %d", want)
	}
}

func blockUntil(t *testing.T, fc *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := fc.BlockUntilContext(ctx, n); err != nil {
		t.Fatalf("clock never reached %d waiters: %v", n, err)
	}
}

func lowGuesses(n int) ([]ai.Prediction, error) {
	return []ai.Prediction{
		{Label: "cat", Confidence: 0.5},
		{Label: fmt.Sprintf("guess%d", n), Confidence: 0.2},
	}, nil
}

func hasLabel(st State, label string) bool {
	for _, p := range st.Predictions {
		if p.Label == label {
			return true
		}
	}
	return false
}

func playUntilPlaying(t *testing.T, s *Session, fc *clockwork.FakeClock, rec *stateRecorder) {
	t.Helper()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	rec.waitFor(t, "countdown 3", func(st State) bool { return st.Phase == PhaseCountdown && st.Countdown == 3 })
	fc.Advance(time.Second)
	rec.waitFor(t, "countdown 2", func(st State) bool { return st.Countdown == 2 })
	fc.Advance(time.Second)
	rec.waitFor(t, "countdown 1", func(st State) bool { return st.Countdown == 1 })
	fc.Advance(time.Second)
	rec.waitFor(t, "playing", func(st State) bool { return st.Phase == PhasePlaying })
}

func TestSessionWinsWhenTargetRecognized(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := &scriptedRecognizer{
		clock:   fc,
		latency: 300 * time.Millisecond,
		called:  make(chan int, 16),
		script: func(n int) ([]ai.Prediction, error) {
			if n == 8 {
				return []ai.Prediction{{Label: "dog", Confidence: 0.3}, {Label: "cat", Confidence: 0.92}}, nil
			}
			return lowGuesses(n)
		},
	}
	saver := &recordingSaver{}
	s := NewSession("p1", fixedPrompt("cat"), rec, WithClock(fc), WithSaver(saver))
	defer s.Close()
	states := record(s)

	playUntilPlaying(t, s, fc, states)
	if s.Canvas().Disabled() {
		t.Fatal("canvas should accept input while playing")
	}

	for i := 1; i <= 8; i++ {
		if i == 1 {
			fc.Advance(time.Second)
		} else {
			fc.Advance(700 * time.Millisecond)
		}
		waitCall(t, rec, i)
		// elapsed ticker, poll ticker and the recognizer's delay
		blockUntil(t, fc, 3)
		fc.Advance(300 * time.Millisecond)
		if i < 8 {
			label := fmt.Sprintf("guess%d", i)
			st := states.waitFor(t, label, func(st State) bool { return hasLabel(st, label) })
			if st.Phase != PhasePlaying {
				t.Fatalf("expected to keep playing after call %d, got %s", i, st.Phase)
			}
		}
	}

	st := states.waitFor(t, "completed", func(st State) bool { return st.Phase == PhaseCompleted })
	if st.Result == nil || !st.Result.Success {
		t.Fatalf("expected a successful result, got %+v", st.Result)
	}
	if st.Result.TimeElapsed != 8.3 {
		t.Fatalf("expected 8.3s, got %v", st.Result.TimeElapsed)
	}
	if st.Result.Confidence != 0.92 {
		t.Fatalf("expected confidence 0.92, got %v", st.Result.Confidence)
	}
	if st.Result.Rating != 4 {
		t.Fatalf("expected rating 4, got %d", st.Result.Rating)
	}
	if st.Predictions[0].Label != "cat" {
		t.Fatalf("predictions should be sorted, got %+v", st.Predictions)
	}

	saved := states.waitFor(t, "saved", func(st State) bool { return st.Result != nil && st.Result.Saved })
	if saved.Result.ImageURL != "http://localhost/sketches/cat.png" {
		t.Fatalf("expected public url, got %q", saved.Result.ImageURL)
	}
	if saver.count() != 1 {
		t.Fatalf("expected exactly one save, got %d", saver.count())
	}
	if !s.Canvas().Disabled() {
		t.Fatal("canvas should be disabled after completion")
	}
}

func TestSessionTimesOut(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := &scriptedRecognizer{called: make(chan int, 16), script: lowGuesses}
	saver := &recordingSaver{}
	s := NewSession("p1", fixedPrompt("cat"), rec, WithClock(fc), WithSaver(saver))
	states := record(s)

	playUntilPlaying(t, s, fc, states)
	fc.Advance(60 * time.Second)

	st := states.waitFor(t, "completed", func(st State) bool { return st.Phase == PhaseCompleted })
	if st.Result == nil || st.Result.Success {
		t.Fatalf("expected a failed result, got %+v", st.Result)
	}
	if st.Result.Rating != 0 {
		t.Fatalf("expected rating 0, got %d", st.Result.Rating)
	}
	if st.Elapsed != 60 {
		t.Fatalf("expected elapsed to stop at 60, got %v", st.Elapsed)
	}
	if st.Result.ImageURL == "" {
		t.Fatal("failed result should still carry the local image")
	}

	s.Close()
	if saver.count() != 0 {
		t.Fatalf("failed games must not be saved, got %d saves", saver.count())
	}
}

func TestSessionSurvivesRecognitionErrors(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := &scriptedRecognizer{
		called: make(chan int, 16),
		script: func(n int) ([]ai.Prediction, error) {
			if n == 1 {
				return nil, errors.New("network down")
			}
			return []ai.Prediction{{Label: "cat", Confidence: 0.96}}, nil
		},
	}
	saver := &recordingSaver{err: errors.New("bucket unavailable")}
	s := NewSession("p1", fixedPrompt("cat"), rec, WithClock(fc), WithSaver(saver))
	defer s.Close()
	states := record(s)

	playUntilPlaying(t, s, fc, states)
	fc.Advance(time.Second)
	waitCall(t, rec, 1)
	fc.Advance(time.Second)
	waitCall(t, rec, 2)

	st := states.waitFor(t, "completed", func(st State) bool { return st.Phase == PhaseCompleted })
	if !st.Result.Success || st.Result.Rating != 5 {
		t.Fatalf("expected a 5 star win, got %+v", st.Result)
	}
	if st.Result.Saved {
		t.Fatal("result should not be marked saved when the saver fails")
	}
	if len(st.Result.ImageURL) == 0 || st.Result.ImageURL[:5] != "data:" {
		t.Fatalf("expected data url fallback, got %q", st.Result.ImageURL)
	}
}

func TestLateRecognitionCannotCompleteTwice(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := &scriptedRecognizer{
		clock:   fc,
		latency: 1500 * time.Millisecond,
		called:  make(chan int, 16),
		script: func(n int) ([]ai.Prediction, error) {
			if n == 1 {
				return []ai.Prediction{{Label: "cat", Confidence: 0.91}}, nil
			}
			return []ai.Prediction{{Label: "dog", Confidence: 0.5}, {Label: "cat", Confidence: 0.99}}, nil
		},
	}
	s := NewSession("p1", fixedPrompt("cat"), rec, WithClock(fc))
	defer s.Close()
	states := record(s)

	playUntilPlaying(t, s, fc, states)
	fc.Advance(time.Second)
	waitCall(t, rec, 1)
	blockUntil(t, fc, 3)
	fc.Advance(time.Second)
	waitCall(t, rec, 2)
	blockUntil(t, fc, 4)
	fc.Advance(500 * time.Millisecond)

	done := states.waitFor(t, "completed", func(st State) bool { return st.Phase == PhaseCompleted })
	if done.Result.Confidence != 0.91 {
		t.Fatalf("expected the first win to stick, got %v", done.Result.Confidence)
	}

	blockUntil(t, fc, 1)
	fc.Advance(time.Second)
	late := states.waitFor(t, "late predictions", func(st State) bool { return hasLabel(st, "dog") })
	if late.Phase != PhaseCompleted {
		t.Fatalf("late result changed phase to %s", late.Phase)
	}
	if late.Result.Confidence != 0.91 || late.Result.TimeElapsed != done.Result.TimeElapsed {
		t.Fatalf("late result rewrote the outcome: %+v", late.Result)
	}
}

func TestStartWhileActive(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := &scriptedRecognizer{called: make(chan int, 16), script: lowGuesses}
	s := NewSession("p1", fixedPrompt("cat"), rec, WithClock(fc))
	defer s.Close()
	states := record(s)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	states.waitFor(t, "countdown", func(st State) bool { return st.Phase == PhaseCountdown })
	if err := s.Start(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
}

func TestRestartResetsSession(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := &scriptedRecognizer{called: make(chan int, 64), script: lowGuesses}
	prompts := &rotatingPrompt{words: []string{"cat", "tree"}}
	s := NewSession("p1", prompts, rec, WithClock(fc))
	defer s.Close()
	states := record(s)

	playUntilPlaying(t, s, fc, states)
	fc.Advance(60 * time.Second)
	states.waitFor(t, "completed", func(st State) bool { return st.Phase == PhaseCompleted })

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	st := states.waitFor(t, "second countdown", func(st State) bool { return st.Phase == PhaseCountdown })
	if st.Prompt != "tree" {
		t.Fatalf("expected new prompt tree, got %q", st.Prompt)
	}
	if st.Countdown != 3 || st.Elapsed != 0 || len(st.Predictions) != 0 || st.Result != nil || st.Snapshot != nil {
		t.Fatalf("session fields not reset: %+v", st)
	}
}

func TestStartFallsBackWhenPromptUnavailable(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := &scriptedRecognizer{called: make(chan int, 16), script: lowGuesses}
	s := NewSession("p1", failingPrompt{}, rec, WithClock(fc))
	defer s.Close()
	states := record(s)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	st := states.waitFor(t, "countdown", func(st State) bool { return st.Phase == PhaseCountdown })
	if st.Prompt != "cat" {
		t.Fatalf("expected fallback prompt, got %q", st.Prompt)
	}
}

func TestCloseCancelsTimers(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := &scriptedRecognizer{called: make(chan int, 16), script: lowGuesses}
	s := NewSession("p1", fixedPrompt("cat"), rec, WithClock(fc))
	states := record(s)

	playUntilPlaying(t, s, fc, states)
	s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := fc.BlockUntilContext(ctx, 0); err != nil {
		t.Fatalf("timers still registered after close: %v", err)
	}
	if !s.Canvas().Disabled() {
		t.Fatal("canvas should be disabled after close")
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestSnapshotsIgnoredOutsidePlay(t *testing.T) {
	rec := &scriptedRecognizer{called: make(chan int, 16), script: lowGuesses}
	s := NewSession("p1", fixedPrompt("cat"), rec, WithClock(clockwork.NewFakeClock()))
	defer s.Close()

	s.PushSnapshot([]byte("png"))
	select {
	case <-s.snapshots:
		t.Fatal("idle session should drop snapshots")
	default:
	}
}
