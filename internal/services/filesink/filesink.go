// Package filesink implements a service that subscribes to a topic and
// appends every payload it receives, JSON-encoded, to a file.
package filesink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/orbitmesh/orbit/pkg/lifecycle"
	"github.com/orbitmesh/orbit/pkg/log"
	"github.com/orbitmesh/orbit/pkg/servicectx"
)

// DefaultFlushInterval is how often the writer is flushed to disk while the
// service is running, absent an explicit interval.
const DefaultFlushInterval = 5 * time.Second

// Service appends every payload published to Topic, one JSON line per
// payload, to a file at Path.
type Service struct {
	lifecycle.Base

	Path          string
	Topic         string
	FlushInterval time.Duration

	mu      sync.Mutex // guards writer: handler invocations and the flush tick run on different goroutines
	file    *os.File
	writer  *bufio.Writer
	handler func(payload any)
}

// New constructs a file sink service named after the file it writes to.
func New(path, topic string, flushInterval time.Duration) *Service {
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	return &Service{
		Base:          lifecycle.NewBase(fmt.Sprintf("filesink:%s", path)),
		Path:          path,
		Topic:         topic,
		FlushInterval: flushInterval,
	}
}

// Initialize opens Path for appending.
func (s *Service) Initialize(ctx context.Context, sc *servicectx.Context) error {
	f, err := os.OpenFile(s.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("filesink: open %s: %w", s.Path, err)
	}
	s.file = f
	s.writer = bufio.NewWriter(f)
	return nil
}

// Run subscribes to Topic and flushes the writer on FlushInterval until the
// service is stopped.
func (s *Service) Run(ctx context.Context, sc *servicectx.Context) error {
	logger := log.WithService(s.Name())

	s.handler = func(payload any) {
		line, err := json.Marshal(payload)
		if err != nil {
			logger.Error().Err(err).Msg("failed to encode payload")
			return
		}
		s.mu.Lock()
		_, err = s.writer.Write(append(line, '\n'))
		s.mu.Unlock()
		if err != nil {
			logger.Error().Err(err).Msg("failed to write payload")
		}
	}
	sc.Subscribe(s.Topic, s.handler)

	ticker := time.NewTicker(s.FlushInterval)
	defer ticker.Stop()

	for s.State() == lifecycle.StateRunning {
		select {
		case <-ticker.C:
			s.mu.Lock()
			err := s.writer.Flush()
			s.mu.Unlock()
			if err != nil {
				logger.Error().Err(err).Msg("failed to flush")
			}
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// Terminate unsubscribes, flushes any buffered writes, and closes the file.
func (s *Service) Terminate(ctx context.Context, sc *servicectx.Context) error {
	sc.Unsubscribe(s.Topic, s.handler)

	if s.writer != nil {
		s.mu.Lock()
		err := s.writer.Flush()
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("filesink: flush %s: %w", s.Path, err)
		}
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
