package export

import (
	"context"
	"encoding/csv"
	"io"

	"meridian-hq/veristat/pkg/engine"
)

// CSVExporter writes one row per violation, so a clean run produces headers
// only.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Export writes validation results to w in CSV format.
func (e *CSVExporter) Export(ctx context.Context, results []*engine.Result, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(headerRow()); err != nil {
			return NewExportError("csv", 0, err)
		}
	}

	for i, result := range results {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		for _, row := range resultRows(result) {
			if err := writer.Write(row); err != nil {
				return NewExportError("csv", i, err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return NewExportError("csv", len(results), err)
	}
	return nil
}

// ExportStream writes results from a channel, flushing periodically. This is
// memory-efficient for large batches.
func (e *CSVExporter) ExportStream(ctx context.Context, resultsCh <-chan *engine.Result, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(headerRow()); err != nil {
			return NewExportError("csv", 0, err)
		}
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case result, ok := <-resultsCh:
			if !ok {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return NewExportError("csv", count, err)
				}
				return nil
			}

			for _, row := range resultRows(result) {
				if err := writer.Write(row); err != nil {
					return NewExportError("csv", count, err)
				}
			}
			count++

			if count%100 == 0 {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return NewExportError("csv", count, err)
				}
			}
		}
	}
}

// headerRow returns the CSV header.
func headerRow() []string {
	return []string{"record_id", "category", "instrument", "variant", "field", "rule", "message"}
}

// resultRows flattens a result into one row per violation.
func resultRows(result *engine.Result) [][]string {
	rows := make([][]string, 0, len(result.Violations))
	for _, v := range result.Violations {
		rows = append(rows, []string{
			result.RecordID,
			result.Category,
			result.Instrument,
			result.Variant,
			v.Field,
			v.Rule,
			v.Message,
		})
	}
	return rows
}
