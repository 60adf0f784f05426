package game

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kiliankoe/sketchdash/internal/ai"
)

var shareDay = time.Date(2024, 3, 14, 18, 0, 0, 0, time.UTC)

func TestPresentPlaying(t *testing.T) {
	v := Present(State{
		Phase:   PhasePlaying,
		Prompt:  "cat",
		Elapsed: 2.3,
		Predictions: []ai.Prediction{
			{Label: "a", Confidence: 0.05},
			{Label: "b", Confidence: 0.6},
			{Label: "c", Confidence: 0.5},
			{Label: "d", Confidence: 0.4},
			{Label: "e", Confidence: 0.3},
			{Label: "f", Confidence: 0.2},
			{Label: "g", Confidence: 0.15},
		},
	}, shareDay)

	if v.TimerText != "2.3s" {
		t.Fatalf("expected timer 2.3s, got %s", v.TimerText)
	}
	if v.CanvasDisabled {
		t.Fatal("canvas should be enabled while playing")
	}
	if MaxDisplayPredictions != 3 {
		t.Fatalf("expected three guesses on display, got %d", MaxDisplayPredictions)
	}
	if len(v.Predictions) != MaxDisplayPredictions {
		t.Fatalf("expected %d predictions, got %d", MaxDisplayPredictions, len(v.Predictions))
	}
	if last := v.Predictions[len(v.Predictions)-1].Label; last != "d" {
		t.Fatalf("expected the list to stop at d, got %s", last)
	}
	if v.Predictions[0].Label != "b" {
		t.Fatalf("expected most confident first, got %s", v.Predictions[0].Label)
	}
	for _, p := range v.Predictions {
		if p.Confidence < ai.DisplayThreshold {
			t.Fatalf("prediction below threshold shown: %+v", p)
		}
	}
	if v.Thinking {
		t.Fatal("should not show the thinking placeholder with guesses present")
	}
}

func TestPresentThinking(t *testing.T) {
	v := Present(State{Phase: PhasePlaying, Predictions: []ai.Prediction{{Label: "x", Confidence: 0.01}}}, shareDay)
	if !v.Thinking {
		t.Fatal("expected the thinking placeholder when nothing clears the threshold")
	}
	idle := Present(State{Phase: PhaseIdle}, shareDay)
	if idle.Thinking || !idle.CanvasDisabled {
		t.Fatalf("idle view should be disabled and quiet, got %+v", idle)
	}
}

func TestPresentResult(t *testing.T) {
	win := Present(State{
		Phase:  PhaseCompleted,
		Result: &Result{Success: true, Word: "cat", TimeElapsed: 8.3, Confidence: 0.92, Rating: 4},
	}, shareDay)
	if win.Result == nil {
		t.Fatal("expected a result view")
	}
	if win.Result.Stars != "★★★★☆" {
		t.Fatalf("unexpected stars %q", win.Result.Stars)
	}
	if win.Result.Headline != "The AI recognized your cat in 8.3 seconds!" {
		t.Fatalf("unexpected headline %q", win.Result.Headline)
	}
	want := "SketchDash 2024-03-14: Drew 'cat' in 8.3s with a 4-star rating! Beat me!"
	if win.Result.ShareText != want {
		t.Fatalf("expected share text %q, got %q", want, win.Result.ShareText)
	}

	loss := Present(State{Phase: PhaseCompleted, Result: &Result{Word: "cat", TimeElapsed: 60}}, shareDay)
	if !strings.Contains(loss.Result.Headline, "couldn't recognize") {
		t.Fatalf("unexpected failure headline %q", loss.Result.Headline)
	}
	if loss.Result.Stars != "☆☆☆☆☆" {
		t.Fatalf("unexpected stars %q", loss.Result.Stars)
	}
}

func TestStarsClamps(t *testing.T) {
	if Stars(9) != "★★★★★" {
		t.Fatalf("unexpected stars %q", Stars(9))
	}
	if Stars(-1) != "☆☆☆☆☆" {
		t.Fatalf("unexpected stars %q", Stars(-1))
	}
}

func TestExportResult(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "out", "results.txt")

	win := Result{Success: true, Word: "cat", TimeElapsed: 8.3, Confidence: 0.92, Rating: 4, Saved: true, ImageURL: "http://localhost/sketches/cat-1.png"}
	if err := ExportResult(win, filename); err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := ExportResult(Result{Word: "tree", TimeElapsed: 60}, filename); err != nil {
		t.Fatalf("second export: %v", err)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	content := string(data)
	if strings.Count(content, "SketchDash Game Results") != 1 {
		t.Fatalf("header should be written once:\n%s", content)
	}
	for _, want := range []string{
		`"cat" recognized`,
		"- time: 8.3s",
		"- confidence: 92%",
		"- rating: ★★★★☆",
		"- image: http://localhost/sketches/cat-1.png",
		`"tree" not recognized`,
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("export missing %q:\n%s", want, content)
		}
	}
}
