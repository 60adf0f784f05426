package game

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/sketchdash/internal/ai"
	"github.com/kiliankoe/sketchdash/internal/canvas"
)

// PromptSource supplies the word to draw.
type PromptSource interface {
	DailyWord(ctx context.Context) (string, error)
}

// ResultSaver stores a successful drawing and returns its public URL.
type ResultSaver interface {
	SaveResult(ctx context.Context, r Result) (imageURL string, err error)
}

type recognition struct {
	preds []ai.Prediction
	err   error
}

// Session is one player's game. A single goroutine per run owns all
// mutations; everything else talks to it through channels.
type Session struct {
	Key string

	cfg        Config
	clock      clockwork.Clock
	prompts    PromptSource
	recognizer ai.Recognizer
	saver      ResultSaver
	canvas     *canvas.Canvas

	mu        sync.Mutex
	m         *machine
	subs      []func(State)
	onResult  []func(Result)
	closed    bool
	runCancel context.CancelFunc
	runDone   chan struct{}

	snapshots chan []byte
}

type Option func(*Session)

func WithClock(c clockwork.Clock) Option { return func(s *Session) { s.clock = c } }
func WithConfig(cfg Config) Option { return func(s *Session) { s.cfg = cfg } }
func WithSaver(saver ResultSaver) Option { return func(s *Session) { s.saver = saver } }
func WithCanvas(c *canvas.Canvas) Option { return func(s *Session) { s.canvas = c } }

func NewSession(key string, prompts PromptSource, rec ai.Recognizer, opts ...Option) *Session {
	s := &Session{
		Key:        key,
		cfg:        DefaultConfig(),
		clock:      clockwork.NewRealClock(),
		prompts:    prompts,
		recognizer: rec,
		snapshots:  make(chan []byte, 1),
	}
	for _, o := range opts {
		o(s)
	}
	if s.canvas == nil {
		s.canvas = canvas.New(canvas.DefaultWidth, canvas.DefaultHeight)
	}
	s.m = newMachine(s.cfg)
	s.canvas.OnSnapshot(s.PushSnapshot)
	return s
}

// Canvas is the drawing surface whose snapshots feed this session.
func (s *Session) Canvas() *canvas.Canvas { return s.canvas }

// Subscribe registers an observer called after every state change. Observers
// run on the session goroutine and must not block.
func (s *Session) Subscribe(fn func(State)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// OnResult registers a hook called once per finished game, after the save
// attempt.
func (s *Session) OnResult(fn func(Result)) {
	s.mu.Lock()
	s.onResult = append(s.onResult, fn)
	s.mu.Unlock()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.state.clone()
}

func (s *Session) GetPhase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.state.Phase
}

// Start fetches a prompt, resets the session and begins the countdown.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if p := s.m.state.Phase; p == PhaseCountdown || p == PhasePlaying {
		s.mu.Unlock()
		return ErrSessionActive
	}
	// a finished run may still be draining late recognitions
	prevCancel, prevDone := s.runCancel, s.runDone
	s.mu.Unlock()
	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	word, err := s.prompts.DailyWord(ctx)
	if err != nil || word == "" {
		log.Warn().Err(err).Str("key", s.Key).Msg("daily prompt unavailable, using fallback")
		word = s.cfg.FallbackPrompt
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if err := s.m.start(word); err != nil {
		s.mu.Unlock()
		return err
	}
	s.drainSnapshots()
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.runCancel, s.runDone = cancel, done
	s.mu.Unlock()

	s.canvas.Deactivate()
	log.Info().Str("key", s.Key).Str("prompt", word).Msg("game:start")
	go s.run(runCtx, done)
	return nil
}

// Close tears the session down: all timers and in-flight calls are cancelled.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel, done := s.runCancel, s.runDone
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	s.canvas.Deactivate()
}

// PushSnapshot hands the latest raster to the session. Only the newest
// snapshot is kept; it is ignored outside of play.
func (s *Session) PushSnapshot(png []byte) {
	if s.GetPhase() != PhasePlaying {
		return
	}
	select {
	case s.snapshots <- png:
	default:
		select {
		case <-s.snapshots:
		default:
		}
		select {
		case s.snapshots <- png:
		default:
		}
	}
}

func (s *Session) drainSnapshots() {
	for {
		select {
		case <-s.snapshots:
		default:
			return
		}
	}
}

func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	countdown := s.clock.NewTicker(s.cfg.CountdownTick)
	countdownC := countdown.Chan()
	defer countdown.Stop()

	var (
		elapsedT, pollT clockwork.Ticker
		elapsedC, pollC <-chan time.Time
		startedAt       time.Time
		inflight        int
		results         = make(chan recognition, 4)
	)
	stopPlay := func() {
		if elapsedT != nil {
			elapsedT.Stop()
			pollT.Stop()
		}
		elapsedC, pollC = nil, nil
	}
	defer stopPlay()

	s.notify()

	finished := false
	for !finished {
		select {
		case <-ctx.Done():
			log.Info().Str("key", s.Key).Msg("game:teardown")
			return

		case <-countdownC:
			s.mu.Lock()
			playing := s.m.tickCountdown()
			s.mu.Unlock()
			if playing {
				countdown.Stop()
				countdownC = nil
				startedAt = s.clock.Now()
				elapsedT = s.clock.NewTicker(s.cfg.ElapsedTick)
				pollT = s.clock.NewTicker(s.cfg.PollInterval)
				elapsedC, pollC = elapsedT.Chan(), pollT.Chan()
				s.canvas.Activate()
				s.mu.Lock()
				s.m.setSnapshot(s.canvas.Snapshot())
				s.mu.Unlock()
				log.Info().Str("key", s.Key).Msg("game:playing")
			}
			s.notify()

		case <-elapsedC:
			s.mu.Lock()
			timedOut := s.m.setElapsed(s.clock.Since(startedAt))
			if timedOut {
				finished = s.m.complete(false, 0)
			}
			s.mu.Unlock()
			s.notify()

		case png := <-s.snapshots:
			s.mu.Lock()
			s.m.setSnapshot(png)
			s.mu.Unlock()

		case <-pollC:
			s.mu.Lock()
			img, target := s.m.state.Snapshot, s.m.state.Prompt
			s.mu.Unlock()
			if img == nil {
				continue
			}
			inflight++
			go func() {
				preds, err := s.recognizer.Recognize(ctx, img, target)
				select {
				case results <- recognition{preds: preds, err: err}:
				case <-ctx.Done():
				}
			}()

		case r := <-results:
			inflight--
			if r.err != nil {
				log.Error().Err(r.err).Str("key", s.Key).Msg("recognition failed")
				continue
			}
			s.mu.Lock()
			if s.m.setElapsed(s.clock.Since(startedAt)) {
				finished = s.m.complete(false, 0)
			} else if won, conf := s.m.applyPredictions(r.preds); won {
				finished = s.m.complete(true, conf)
			}
			s.mu.Unlock()
			s.notify()
		}
	}

	stopPlay()
	s.canvas.Deactivate()
	s.finish(ctx)

	// late answers are still shown, they just can't change the outcome
	for inflight > 0 {
		select {
		case <-ctx.Done():
			return
		case r := <-results:
			inflight--
			if r.err != nil {
				continue
			}
			s.mu.Lock()
			s.m.applyPredictions(r.preds)
			s.mu.Unlock()
			s.notify()
		}
	}
}

// finish notifies observers of the result, then tries to persist it.
func (s *Session) finish(ctx context.Context) {
	s.notify()

	s.mu.Lock()
	res := *s.m.state.Result
	s.mu.Unlock()
	log.Info().Str("key", s.Key).Bool("success", res.Success).Float64("time", res.TimeElapsed).Int("rating", res.Rating).Msg("game:completed")

	if res.Success && len(res.Image) > 0 && s.saver != nil {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SaveTimeout)
		url, err := s.saver.SaveResult(saveCtx, res)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("key", s.Key).Msg("failed to save sketch")
		} else {
			s.mu.Lock()
			s.m.markSaved(url)
			res = *s.m.state.Result
			s.mu.Unlock()
			s.notify()
		}
	}

	s.mu.Lock()
	hooks := append([]func(Result){}, s.onResult...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(res)
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	st := s.m.state.clone()
	subs := append([]func(State){}, s.subs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
}
