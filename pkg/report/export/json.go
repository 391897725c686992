package export

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"meridian-hq/veristat/pkg/engine"
)

// JSONExporter writes a single report document: run summary plus per-record
// results.
type JSONExporter struct {
	// Pretty enables indented output.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Report is the top-level JSON document.
type Report struct {
	GeneratedAt    time.Time        `json:"generated_at"`
	RecordCount    int              `json:"record_count"`
	ViolationCount int              `json:"violation_count"`
	Results        []*engine.Result `json:"results"`
}

// Export writes validation results to w as one JSON report.
func (e *JSONExporter) Export(ctx context.Context, results []*engine.Result, w io.Writer) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	report := &Report{
		GeneratedAt: time.Now().UTC(),
		RecordCount: len(results),
		Results:     results,
	}
	for _, r := range results {
		report.ViolationCount += len(r.Violations)
	}

	enc := json.NewEncoder(w)
	if e.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(report); err != nil {
		return NewExportError("json", len(results), err)
	}
	return nil
}

// ExportStream writes results from a channel as a JSON array of results, one
// element per record, without buffering the whole batch.
func (e *JSONExporter) ExportStream(ctx context.Context, resultsCh <-chan *engine.Result, w io.Writer) error {
	if _, err := io.WriteString(w, "[\n"); err != nil {
		return NewExportError("json", 0, err)
	}

	enc := json.NewEncoder(w)
	count := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case result, ok := <-resultsCh:
			if !ok {
				if _, err := io.WriteString(w, "]\n"); err != nil {
					return NewExportError("json", count, err)
				}
				return nil
			}
			if count > 0 {
				if _, err := io.WriteString(w, ",\n"); err != nil {
					return NewExportError("json", count, err)
				}
			}
			if err := enc.Encode(result); err != nil {
				return NewExportError("json", count, err)
			}
			count++
		}
	}
}
