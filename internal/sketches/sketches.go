package sketches

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/sketchdash/internal/blob"
	"github.com/kiliankoe/sketchdash/internal/calendar"
	"github.com/kiliankoe/sketchdash/internal/canvas"
	"github.com/kiliankoe/sketchdash/internal/game"
)

const (
	DefaultTopTime   = 14.2
	RecentLimit      = 12
	ArtistsFloor     = 78
	GalleryLimit     = 50
	LeaderboardLimit = 10
)

var (
	ErrInvalidInput = errors.New("image data and object are required")
	ErrUpload       = errors.New("upload failed")
)

// Sketch is the stored record of a finished drawing.
type Sketch struct {
	ID          string    `json:"id"`
	ObjectName  string    `json:"object_name"`
	TimeSeconds float64   `json:"time_seconds"`
	Confidence  float64   `json:"confidence"`
	Rating      int       `json:"rating"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type Order int

const (
	Newest Order = iota
	Fastest
)

// ListOptions selects sketches created in [From, To). Zero bounds are open.
type ListOptions struct {
	From  time.Time
	To    time.Time
	Order Order
	Limit int
}

type Repo interface {
	InsertSketch(ctx context.Context, s *Sketch) error
	ListSketches(ctx context.Context, opts ListOptions) ([]Sketch, error)
	CountSketches(ctx context.Context, from, to time.Time) (int, error)
}

type Service struct {
	repo  Repo
	blobs blob.Store
	clock clockwork.Clock
	loc   *time.Location
}

func NewService(repo Repo, blobs blob.Store, clock clockwork.Clock, loc *time.Location) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, blobs: blobs, clock: clock, loc: loc}
}

type SaveInput struct {
	ImageData  string  `json:"imageData"`
	Object     string  `json:"object"`
	Time       float64 `json:"time"`
	Confidence float64 `json:"confidence"`
}

// Save uploads the drawing and records it.
func (s *Service) Save(ctx context.Context, in SaveInput) (*Sketch, error) {
	if in.ImageData == "" || strings.TrimSpace(in.Object) == "" {
		return nil, ErrInvalidInput
	}
	png, err := canvas.DecodeDataURL(in.ImageData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.store(ctx, in.Object, png, in.Time, in.Confidence)
}

// SaveResult persists a finished game and returns the image's public URL.
func (s *Service) SaveResult(ctx context.Context, r game.Result) (string, error) {
	if len(r.Image) == 0 || r.Word == "" {
		return "", ErrInvalidInput
	}
	sk, err := s.store(ctx, r.Word, r.Image, r.TimeElapsed, r.Confidence)
	if err != nil {
		return "", err
	}
	return sk.ImageURL, nil
}

func (s *Service) store(ctx context.Context, object string, png []byte, seconds, confidence float64) (*Sketch, error) {
	now := s.clock.Now()
	name := fmt.Sprintf("%s-%d.png", objectSlug(object), now.UnixMilli())
	if err := s.blobs.Upload(ctx, name, png, "image/png"); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpload, err)
	}
	sk := &Sketch{
		ID:          uuid.NewString(),
		ObjectName:  object,
		TimeSeconds: seconds,
		Confidence:  confidence,
		Rating:      game.Rating(true, confidence, seconds),
		ImageURL:    s.blobs.PublicURL(name),
		CreatedAt:   now.UTC(),
	}
	if err := s.repo.InsertSketch(ctx, sk); err != nil {
		return nil, fmt.Errorf("insert sketch: %w", err)
	}
	log.Info().Str("id", sk.ID).Str("object", object).Float64("time", seconds).Int("rating", sk.Rating).Msg("sketch saved")
	return sk, nil
}

func objectSlug(object string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '-'
		}
		return r
	}, strings.TrimSpace(object))
}

// TopTime is today's fastest drawing time, or DefaultTopTime.
func (s *Service) TopTime(ctx context.Context) (float64, error) {
	from, to := calendar.Day(s.clock.Now(), s.loc)
	rows, err := s.repo.ListSketches(ctx, ListOptions{From: from, To: to, Order: Fastest, Limit: 1})
	if err != nil {
		return 0, fmt.Errorf("top time: %w", err)
	}
	if len(rows) == 0 {
		return DefaultTopTime, nil
	}
	return rows[0].TimeSeconds, nil
}

type Recent struct {
	Sketches      []Sketch `json:"sketches"`
	TodaysArtists int      `json:"todaysArtists"`
}

// Recent returns the carousel: sketches between 30 and 2 days old, newest
// first, and today's artist count.
func (s *Service) Recent(ctx context.Context) (*Recent, error) {
	now := s.clock.Now()
	rows, err := s.repo.ListSketches(ctx, ListOptions{
		From:  calendar.DaysAgo(now, 30),
		To:    calendar.DaysAgo(now, 2),
		Order: Newest,
		Limit: RecentLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("recent sketches: %w", err)
	}
	if rows == nil {
		rows = []Sketch{}
	}

	artists := ArtistsFloor
	from, to := calendar.Day(now, s.loc)
	if n, err := s.repo.CountSketches(ctx, from, to); err != nil {
		log.Warn().Err(err).Msg("failed to count today's sketches")
	} else if n > artists {
		artists = n
	}
	return &Recent{Sketches: rows, TodaysArtists: artists}, nil
}

// Gallery lists the newest sketches from before today.
func (s *Service) Gallery(ctx context.Context) ([]Sketch, error) {
	today, _ := calendar.Day(s.clock.Now(), s.loc)
	rows, err := s.repo.ListSketches(ctx, ListOptions{To: today, Order: Newest, Limit: GalleryLimit})
	if err != nil {
		return nil, fmt.Errorf("gallery: %w", err)
	}
	if rows == nil {
		rows = []Sketch{}
	}
	return rows, nil
}

// DailyLeaderboard lists today's fastest drawings.
func (s *Service) DailyLeaderboard(ctx context.Context) ([]Sketch, error) {
	from, to := calendar.Day(s.clock.Now(), s.loc)
	rows, err := s.repo.ListSketches(ctx, ListOptions{From: from, To: to, Order: Fastest, Limit: LeaderboardLimit})
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	if rows == nil {
		rows = []Sketch{}
	}
	return rows, nil
}
