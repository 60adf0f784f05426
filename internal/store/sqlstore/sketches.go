package sqlstore

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/kiliankoe/sketchdash/internal/sketches"
)

const sketchesTable = "sketches"

var sketchColumns = []string{"id", "object_name", "time_seconds", "confidence", "rating", "image_url", "created_at"}

func (s *DB) InsertSketch(ctx context.Context, sk *sketches.Sketch) error {
	if sk.CreatedAt.IsZero() {
		sk.CreatedAt = time.Now().UTC()
	}
	query, args, err := s.d.builder.Insert(sketchesTable).
		Columns(sketchColumns...).
		Values(sk.ID, sk.ObjectName, sk.TimeSeconds, sk.Confidence, sk.Rating, sk.ImageURL, s.timeArg(sk.CreatedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert sketch %s: %w", sk.ID, err)
	}
	return nil
}

func (s *DB) rangeFilter(q sq.SelectBuilder, from, to time.Time) sq.SelectBuilder {
	if !from.IsZero() {
		q = q.Where(sq.GtOrEq{"created_at": s.timeArg(from)})
	}
	if !to.IsZero() {
		q = q.Where(sq.Lt{"created_at": s.timeArg(to)})
	}
	return q
}

func (s *DB) ListSketches(ctx context.Context, opts sketches.ListOptions) ([]sketches.Sketch, error) {
	q := s.rangeFilter(s.d.builder.Select(sketchColumns...).From(sketchesTable), opts.From, opts.To)
	switch opts.Order {
	case sketches.Fastest:
		q = q.OrderBy("time_seconds ASC", "created_at ASC")
	default:
		q = q.OrderBy("created_at DESC")
	}
	if opts.Limit > 0 {
		q = q.Limit(uint64(opts.Limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sketches: %w", err)
	}
	defer rows.Close()

	out := []sketches.Sketch{}
	for rows.Next() {
		var (
			sk        sketches.Sketch
			createdAt nullTime
		)
		if err := rows.Scan(&sk.ID, &sk.ObjectName, &sk.TimeSeconds, &sk.Confidence, &sk.Rating, &sk.ImageURL, &createdAt); err != nil {
			return nil, fmt.Errorf("scan sketch: %w", err)
		}
		sk.CreatedAt = createdAt.Time
		out = append(out, sk)
	}
	return out, rows.Err()
}

func (s *DB) CountSketches(ctx context.Context, from, to time.Time) (int, error) {
	query, args, err := s.rangeFilter(s.d.builder.Select("COUNT(*)").From(sketchesTable), from, to).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sketches: %w", err)
	}
	return n, nil
}
