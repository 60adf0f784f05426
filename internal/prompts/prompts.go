package prompts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/sketchdash/internal/calendar"
)

var (
	ErrNoPrompts     = errors.New("no prompts available")
	ErrNotFound      = errors.New("prompt not found")
	ErrInvalidInput  = errors.New("invalid prompt")
	ErrDuplicateWord = errors.New("prompt already exists")
)

// Prompt is a word players are asked to draw.
type Prompt struct {
	ID         int64      `json:"id"`
	Word       string     `json:"word"`
	Category   string     `json:"category,omitempty"`
	Difficulty int        `json:"difficulty,omitempty"`
	Active     bool       `json:"active"`
	LastUsed   *time.Time `json:"last_used"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Repo is the storage the rotation runs against. Lookups return ErrNotFound
// when nothing matches.
type Repo interface {
	// UsedSince returns the most recently used prompt stamped at or after t.
	UsedSince(ctx context.Context, t time.Time) (*Prompt, error)
	// FirstUnused returns the active, never used prompt with the lowest id.
	FirstUnused(ctx context.Context) (*Prompt, error)
	// OldestUsed returns the active prompt with the oldest last use.
	OldestUsed(ctx context.Context) (*Prompt, error)
	MarkUsed(ctx context.Context, id int64, at time.Time) error
	InsertPrompt(ctx context.Context, word, category string) (*Prompt, error)
	ListPrompts(ctx context.Context) ([]Prompt, error)
}

type Service struct {
	repo  Repo
	clock clockwork.Clock
	loc   *time.Location
}

func NewService(repo Repo, clock clockwork.Clock, loc *time.Location) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, clock: clock, loc: loc}
}

// Daily returns today's prompt. The first caller of a day picks it: the
// lowest unused id, or the least recently used prompt once all have been
// used. Concurrent first callers may both stamp the same prompt.
func (s *Service) Daily(ctx context.Context) (*Prompt, error) {
	now := s.clock.Now()
	dayStart, _ := calendar.Day(now, s.loc)

	p, err := s.repo.UsedSince(ctx, dayStart)
	switch {
	case err == nil:
		return p, nil
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("fetch today's prompt: %w", err)
	}

	p, err = s.repo.FirstUnused(ctx)
	if errors.Is(err, ErrNotFound) {
		p, err = s.repo.OldestUsed(ctx)
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNoPrompts
		}
		if err != nil {
			return nil, fmt.Errorf("fetch oldest prompt: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("fetch unused prompt: %w", err)
	}

	if err := s.repo.MarkUsed(ctx, p.ID, now); err != nil {
		log.Error().Err(err).Int64("id", p.ID).Str("word", p.Word).Msg("failed to mark prompt used")
	} else {
		used := now
		p.LastUsed = &used
	}
	log.Info().Int64("id", p.ID).Str("word", p.Word).Msg("daily prompt selected")
	return p, nil
}

// DailyWord is Daily reduced to the word.
func (s *Service) DailyWord(ctx context.Context) (string, error) {
	p, err := s.Daily(ctx)
	if err != nil {
		return "", err
	}
	return p.Word, nil
}

// Add stores a new active prompt. Words are trimmed and lower-cased.
func (s *Service) Add(ctx context.Context, word, category string) (*Prompt, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return nil, fmt.Errorf("%w: word is required", ErrInvalidInput)
	}
	p, err := s.repo.InsertPrompt(ctx, word, strings.TrimSpace(category))
	if err != nil {
		return nil, fmt.Errorf("add prompt %q: %w", word, err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context) ([]Prompt, error) {
	ps, err := s.repo.ListPrompts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return ps, nil
}
