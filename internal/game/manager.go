package game

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kiliankoe/sketchdash/internal/ai"
)

var ErrSessionNotFound = errors.New("session not found")

const meterName = "github.com/kiliankoe/sketchdash/internal/game"

// Manager keeps at most one session per client key.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	prompts    PromptSource
	recognizer ai.Recognizer
	opts       []Option

	// ExportFile, when set, receives a journal entry for every finished game.
	ExportFile string
	exportMu   sync.Mutex

	opened    metric.Int64Counter
	completed metric.Int64Counter
}

// NewManager records its counters on the global meter provider.
func NewManager(prompts PromptSource, rec ai.Recognizer, opts ...Option) *Manager {
	m := &Manager{
		sessions:   make(map[string]*Session),
		prompts:    prompts,
		recognizer: rec,
		opts:       opts,
	}
	m.UseMeterProvider(otel.GetMeterProvider())
	return m
}

// UseMeterProvider moves the session and game counters to mp.
func (m *Manager) UseMeterProvider(mp metric.MeterProvider) {
	meter := mp.Meter(meterName)
	opened, err := meter.Int64Counter("sketchdash.sessions.opened",
		metric.WithDescription("Sessions opened by clients"))
	if err != nil {
		log.Warn().Err(err).Msg("sessions.opened counter unavailable")
	}
	completed, err := meter.Int64Counter("sketchdash.games.completed",
		metric.WithDescription("Finished games by outcome"))
	if err != nil {
		log.Warn().Err(err).Msg("games.completed counter unavailable")
	}
	m.mu.Lock()
	m.opened, m.completed = opened, completed
	m.mu.Unlock()
}

// Open returns the client's session, creating it if needed. An empty key
// gets a fresh random one.
func (m *Manager) Open(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key == "" {
		key = uuid.NewString()
	}
	if s := m.sessions[key]; s != nil {
		return s
	}
	s := NewSession(key, m.prompts, m.recognizer, m.opts...)
	s.OnResult(m.recordResult)
	m.sessions[key] = s
	if m.opened != nil {
		m.opened.Add(context.Background(), 1)
	}
	return s
}

func (m *Manager) Get(key string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.sessions[key]
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close tears down and forgets the client's session.
func (m *Manager) Close(key string) {
	m.mu.Lock()
	s := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) recordResult(r Result) {
	m.mu.RLock()
	completed := m.completed
	m.mu.RUnlock()
	if completed != nil {
		completed.Add(context.Background(), 1, metric.WithAttributes(attribute.Bool("success", r.Success)))
	}
	if m.ExportFile == "" {
		return
	}
	// one writer at a time so the journal header goes in once
	m.exportMu.Lock()
	defer m.exportMu.Unlock()
	if err := ExportResult(r, m.ExportFile); err != nil {
		log.Error().Err(err).Str("file", m.ExportFile).Msg("failed to export game result")
	}
}
