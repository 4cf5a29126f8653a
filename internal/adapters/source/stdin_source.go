// Package source feeds records into the engine from external inputs.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/savegrandma/phishguard/internal/core"
	"github.com/savegrandma/phishguard/internal/textutil"
)

// Handler receives each decoded record.
type Handler func(ctx context.Context, rec *core.Record)

// StdinSource reads newline-delimited JSON records from a reader
// (normally stdin) and hands them to the engine. Malformed lines are
// logged and skipped.
type StdinSource struct {
	reader  io.Reader
	handler Handler
	logger  *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewStdinSource creates a source over the reader.
func NewStdinSource(reader io.Reader, handler Handler, logger *zap.Logger) *StdinSource {
	return &StdinSource{
		reader:  reader,
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start reads records until the input is exhausted or Stop is called.
func (s *StdinSource) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		defer close(s.done)
		scanner := bufio.NewScanner(s.reader)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var rec core.Record
			if err := json.Unmarshal(line, &rec); err != nil {
				s.logger.Warn("Skipping malformed record", zap.Error(err))
				continue
			}
			sanitizeRecord(&rec)
			s.handler(ctx, &rec)
		}
		if err := scanner.Err(); err != nil {
			s.logger.Error("Record input failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop halts delivery. The read loop may stay blocked on the reader
// until the next line arrives, but no further records are handled.
func (s *StdinSource) Stop() error {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
	return nil
}

// Done is closed when the input is exhausted.
func (s *StdinSource) Done() <-chan struct{} {
	return s.done
}

func sanitizeRecord(rec *core.Record) {
	rec.SenderName = textutil.SanitizeUTF8(rec.SenderName)
	rec.SenderEmail = textutil.SanitizeUTF8(rec.SenderEmail)
	rec.Subject = textutil.SanitizeUTF8(rec.Subject)
	rec.Snippet = textutil.SanitizeUTF8(rec.Snippet)
	rec.Body = textutil.SanitizeUTF8(rec.Body)
	rec.ReplyTo = textutil.SanitizeUTF8(rec.ReplyTo)
}
