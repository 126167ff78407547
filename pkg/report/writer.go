package report

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer outputs JSONL records for check results.
//
// Implementations must be safe for concurrent use from multiple
// goroutines. Each Write* method emits a complete record as a
// single line of JSON followed by a newline.
type Writer interface {
	// WriteMissing emits a missing-job record.
	WriteMissing(ctx context.Context, rec *MissingRecord) error

	// WriteRunning emits a running-job record.
	WriteRunning(ctx context.Context, rec *RunningRecord) error

	// WriteWarning emits a warning record.
	WriteWarning(ctx context.Context, rec *WarningRecord) error

	// WriteResubmit emits a resubmission attempt record.
	WriteResubmit(ctx context.Context, rec *ResubmitRecord) error

	// WriteSummary emits a summary record.
	WriteSummary(ctx context.Context, rec *SummaryRecord) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// JSONLWriter is safe for concurrent use. Writes are serialized using
// a mutex to ensure atomic line writes (no interleaved output).
type JSONLWriter struct {
	w     io.Writer
	runID string
	year  string
	mu    sync.Mutex

	// closed indicates the writer has been closed.
	closed bool
}

// NewJSONLWriter creates a new JSONL writer.
//
// Parameters:
//   - w: The underlying writer (stdout, file, etc.)
//   - runID: Correlation ID for this check run
//   - year: Data-taking year under check
func NewJSONLWriter(w io.Writer, runID, year string) *JSONLWriter {
	return &JSONLWriter{
		w:     w,
		runID: runID,
		year:  year,
	}
}

// WriteMissing emits a missing-job record.
func (jw *JSONLWriter) WriteMissing(ctx context.Context, rec *MissingRecord) error {
	return jw.writeRecord(ctx, TypeMissing, rec)
}

// WriteRunning emits a running-job record.
func (jw *JSONLWriter) WriteRunning(ctx context.Context, rec *RunningRecord) error {
	return jw.writeRecord(ctx, TypeRunning, rec)
}

// WriteWarning emits a warning record.
func (jw *JSONLWriter) WriteWarning(ctx context.Context, rec *WarningRecord) error {
	return jw.writeRecord(ctx, TypeWarning, rec)
}

// WriteResubmit emits a resubmission attempt record.
func (jw *JSONLWriter) WriteResubmit(ctx context.Context, rec *ResubmitRecord) error {
	return jw.writeRecord(ctx, TypeResubmit, rec)
}

// WriteSummary emits a summary record.
func (jw *JSONLWriter) WriteSummary(ctx context.Context, rec *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, rec)
}

// Close marks the writer as closed.
//
// If the underlying writer implements io.Closer, it is NOT closed.
// The caller is responsible for closing the underlying writer.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

// writeRecord marshals data and writes a complete record line.
//
// This method holds the mutex for the entire operation to ensure
// atomic line writes. The record is written as a single line of
// JSON followed by a newline character.
func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Marshal the data payload first (outside the lock for better concurrency)
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	record := Record{
		Type:  recordType,
		TS:    time.Now().UTC(),
		RunID: jw.runID,
		Year:  jw.year,
		Data:  dataBytes,
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	// Write the record followed by newline.
	// We must handle short writes: io.Writer is allowed to return n < len(p)
	// with nil error, which would silently truncate JSONL lines.
	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}

	return nil
}

// writeAll writes all bytes to w, handling short writes.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// Compile-time check that JSONLWriter implements Writer.
var _ Writer = (*JSONLWriter)(nil)
