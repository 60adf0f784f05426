package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/kiliankoe/sketchdash/internal/prompts"
)

const promptsTable = "game_prompts"

var promptColumns = []string{"id", "word", "category", "difficulty", "active", "last_used", "created_at"}

func (s *DB) selectPrompts() sq.SelectBuilder {
	return s.d.builder.Select(promptColumns...).From(promptsTable)
}

func (s *DB) getPrompt(ctx context.Context, q sq.SelectBuilder) (*prompts.Prompt, error) {
	query, args, err := q.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	p, err := scanPrompt(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, prompts.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrompt(row rowScanner) (*prompts.Prompt, error) {
	var (
		p                   prompts.Prompt
		lastUsed, createdAt nullTime
	)
	if err := row.Scan(&p.ID, &p.Word, &p.Category, &p.Difficulty, &p.Active, &lastUsed, &createdAt); err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		p.LastUsed = &t
	}
	p.CreatedAt = createdAt.Time
	return &p, nil
}

func (s *DB) UsedSince(ctx context.Context, t time.Time) (*prompts.Prompt, error) {
	return s.getPrompt(ctx, s.selectPrompts().
		Where(sq.GtOrEq{"last_used": s.timeArg(t)}).
		OrderBy("last_used DESC"))
}

func (s *DB) FirstUnused(ctx context.Context) (*prompts.Prompt, error) {
	return s.getPrompt(ctx, s.selectPrompts().
		Where(sq.Eq{"last_used": nil, "active": true}).
		OrderBy("id ASC"))
}

func (s *DB) OldestUsed(ctx context.Context) (*prompts.Prompt, error) {
	return s.getPrompt(ctx, s.selectPrompts().
		Where(sq.Eq{"active": true}).
		Where(sq.NotEq{"last_used": nil}).
		OrderBy("last_used ASC", "id ASC"))
}

func (s *DB) MarkUsed(ctx context.Context, id int64, at time.Time) error {
	query, args, err := s.d.builder.Update(promptsTable).
		Set("last_used", s.timeArg(at)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark prompt %d used: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return prompts.ErrNotFound
	}
	return nil
}

func (s *DB) InsertPrompt(ctx context.Context, word, category string) (*prompts.Prompt, error) {
	now := time.Now().UTC()
	query, args, err := s.d.builder.Insert(promptsTable).
		Columns("word", "category", "active", "created_at").
		Values(word, category, true, s.timeArg(now)).
		Suffix("RETURNING " + strings.Join(promptColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	p, err := scanPrompt(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, prompts.ErrDuplicateWord
		}
		return nil, fmt.Errorf("insert prompt: %w", err)
	}
	return p, nil
}

func (s *DB) ListPrompts(ctx context.Context) ([]prompts.Prompt, error) {
	query, args, err := s.selectPrompts().OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	out := []prompts.Prompt{}
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// SeedPrompts inserts the words that are not stored yet and reports how
// many were added.
func (s *DB) SeedPrompts(ctx context.Context, words []string) (int, error) {
	existing, err := s.ListPrompts(ctx)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.Word] = true
	}
	added := 0
	for _, w := range words {
		if w == "" || have[w] {
			continue
		}
		if _, err := s.InsertPrompt(ctx, w, ""); err != nil {
			if errors.Is(err, prompts.ErrDuplicateWord) {
				continue
			}
			return added, err
		}
		have[w] = true
		added++
	}
	return added, nil
}
