package export

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// hexPreviewBytes caps how much of a frame the text format dumps as hex.
const hexPreviewBytes = 64

// StdoutExporter prints decoded frames to stdout for debugging.
type StdoutExporter struct {
	format string // "text" or "json"
	logger *zap.Logger
}

// NewStdoutExporter creates a new stdout exporter.
func NewStdoutExporter(format string, logger *zap.Logger) *StdoutExporter {
	if format == "" {
		format = "text"
	}
	return &StdoutExporter{
		format: format,
		logger: logger,
	}
}

// ExportFrames prints decoded frames to stdout.
func (e *StdoutExporter) ExportFrames(ctx context.Context, frames []*FrameRecord) error {
	for _, rec := range frames {
		if e.format == "json" {
			e.printJSON("frame", map[string]interface{}{
				"timestamp": rec.Time.Format(time.RFC3339Nano),
				"stream":    rec.Stream,
				"transport": rec.Transport,
				"size":      len(rec.Data),
				"hex":       hex.EncodeToString(rec.Data),
				"text":      rec.Text,
			})
		} else {
			fmt.Fprintf(os.Stdout,
				"[FRAME] stream=%-12s %-8s len=%4d hex=%s %s\n",
				rec.Stream, rec.Transport, len(rec.Data),
				hexPreview(rec.Data), textPreview(rec.Text),
			)
		}
	}
	return nil
}

// Shutdown is a no-op for stdout.
func (e *StdoutExporter) Shutdown(ctx context.Context) error {
	return nil
}

func (e *StdoutExporter) printJSON(typ string, data map[string]interface{}) {
	data["_type"] = typ
	b, _ := json.Marshal(data)
	fmt.Fprintf(os.Stdout, "%s\n", b)
}

func hexPreview(data []byte) string {
	if len(data) > hexPreviewBytes {
		return hex.EncodeToString(data[:hexPreviewBytes]) + "..."
	}
	return hex.EncodeToString(data)
}

func textPreview(text string) string {
	if text == "" {
		return ""
	}
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return fmt.Sprintf("%q", text)
}
