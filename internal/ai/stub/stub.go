// Package stub is a simulated recognizer. It never looks at the image; it
// produces plausible ranked guesses biased toward the target word.
package stub

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/kiliankoe/sketchdash/internal/ai"
)

// DefaultLatency is how long a simulated recognition takes.
const DefaultLatency = 300 * time.Millisecond

// Vocabulary is the pool distractor labels are drawn from.
var Vocabulary = []string{
	"cat", "dog", "tree", "car", "moon", "bicycle", "house", "sun", "fish",
	"bird", "flower", "book", "chair", "table", "airplane", "mountain",
	"river", "pizza", "apple", "banana", "guitar",
}

type Client struct {
	Latency time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func New(latency time.Duration) *Client {
	return NewWithSource(latency, rand.NewSource(time.Now().UnixNano()))
}

// NewWithSource is New with a fixed random source, for reproducible output.
func NewWithSource(latency time.Duration, src rand.Source) *Client {
	return &Client{Latency: latency, rnd: rand.New(src)}
}

func (c *Client) Recognize(ctx context.Context, image []byte, target string) ([]ai.Prediction, error) {
	if c.Latency > 0 {
		t := time.NewTimer(c.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return c.guess(target), nil
}

func (c *Client) guess(target string) []ai.Prediction {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ai.Prediction, 0, 4)
	distractors := 3
	if target != "" {
		// confident 30% of the time
		var conf float64
		if c.rnd.Float64() < 0.3 {
			conf = c.between(0.7, 1.0)
		} else {
			conf = c.between(0.3, 0.7)
		}
		out = append(out, ai.Prediction{Label: target, Confidence: conf})
		distractors = 2 + c.rnd.Intn(2)
	}

	pool := make([]string, 0, len(Vocabulary))
	for _, w := range Vocabulary {
		if w != target {
			pool = append(pool, w)
		}
	}
	c.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	for i := 0; i < distractors && i < len(pool); i++ {
		conf := c.between(0.1, 0.7)
		if i == 2 {
			conf = c.between(0.05, 0.35)
		}
		out = append(out, ai.Prediction{Label: pool[i], Confidence: conf})
	}
	ai.SortPredictions(out)
	return out
}

func (c *Client) between(lo, hi float64) float64 {
	return lo + c.rnd.Float64()*(hi-lo)
}
