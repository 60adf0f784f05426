package game

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const journalHeader = "SketchDash Game Results\n"

// ExportResult appends a finished game to a plain text journal. The header
// goes in once, when the journal is still empty.
func ExportResult(r Result, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat journal: %w", err)
	}

	var buf bytes.Buffer
	if info.Size() == 0 {
		buf.WriteString(journalHeader)
		buf.WriteString(strings.Repeat("=", 50) + "\n\n")
	}
	writeEntry(&buf, r, time.Now())

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

func writeEntry(buf *bytes.Buffer, r Result, at time.Time) {
	outcome := "not recognized"
	if r.Success {
		outcome = "recognized"
	}
	fmt.Fprintf(buf, "%s  %q %s\n", at.Format(time.DateTime), r.Word, outcome)
	fmt.Fprintf(buf, "- time: %.1fs\n", r.TimeElapsed)
	fmt.Fprintf(buf, "- confidence: %.0f%%\n", r.Confidence*100)
	fmt.Fprintf(buf, "- rating: %s\n", Stars(r.Rating))
	if r.Saved {
		fmt.Fprintf(buf, "- image: %s\n", r.ImageURL)
	}
	buf.WriteByte('\n')
}
