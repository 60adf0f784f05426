// Package remote calls an external recognition service that speaks the same
// JSON as this server's POST /api/recognize.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kiliankoe/sketchdash/internal/ai"
	"github.com/kiliankoe/sketchdash/internal/canvas"
)

type Client struct {
	BaseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: timeout}}
}

func (c *Client) Recognize(ctx context.Context, image []byte, target string) ([]ai.Prediction, error) {
	if c.BaseURL == "" {
		return nil, errors.New("missing RECOGNIZER_URL")
	}
	payload := map[string]any{
		"imageData":  canvas.EncodeDataURL(image),
		"targetWord": target,
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/recognize", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("recognizer status %d", resp.StatusCode)
	}
	var out struct {
		Predictions []ai.Prediction `json:"predictions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	// don't trust the remote ordering
	ai.SortPredictions(out.Predictions)
	return out.Predictions, nil
}
