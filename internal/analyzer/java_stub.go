//go:build !cgo

package analyzer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/felipestanzani/beyondsight/internal/graph"
)

// errJavaUnavailable is returned by the Java producer in non-cgo builds.
var errJavaUnavailable = errors.New("java analysis requires cgo")

// JavaAvailable reports whether Java analysis is compiled in.
func JavaAvailable() bool { return false }

// JavaProducer is a stub for non-cgo builds.
type JavaProducer struct{}

// NewJavaProducer returns a producer that always fails.
func NewJavaProducer(logger *slog.Logger) *JavaProducer {
	return &JavaProducer{}
}

// Language implements LanguageProducer.
func (p *JavaProducer) Language() string { return "java" }

// Detect implements LanguageProducer.
func (p *JavaProducer) Detect(root string) bool { return false }

// Produce implements Producer.
func (p *JavaProducer) Produce(ctx context.Context, root string, sink graph.Sink) error {
	return errJavaUnavailable
}
