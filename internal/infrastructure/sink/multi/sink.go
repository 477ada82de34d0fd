package multi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
	"github.com/kirillkom/certificate-harvester/internal/core/ports"
)

type named struct {
	name string
	sink ports.ResultSink
	// required sinks fail the Append; optional ones are only logged.
	required bool
}

type Sink struct {
	sinks  []named
	logger *slog.Logger
}

func New(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{logger: logger}
}

func (s *Sink) Add(name string, sink ports.ResultSink, required bool) *Sink {
	if sink != nil {
		s.sinks = append(s.sinks, named{name: name, sink: sink, required: required})
	}
	return s
}

// Append writes rec to every sink. Every sink is attempted even when an
// earlier one failed.
func (s *Sink) Append(ctx context.Context, rec domain.ResultRecord) error {
	var errs []error
	for _, n := range s.sinks {
		if err := n.sink.Append(ctx, rec); err != nil {
			if !n.required {
				s.logger.Warn("result_sink_failed", "sink", n.name, "address", rec.Address, "error", err)
				continue
			}
			errs = append(errs, fmt.Errorf("%s: %w", n.name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (s *Sink) Close() error {
	var errs []error
	for _, n := range s.sinks {
		if c, ok := n.sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", n.name, err))
			}
		}
	}
	return errors.Join(errs...)
}
