// Package analyzer turns source trees into reference-graph facts.
//
// A Producer walks a project and feeds declare/record facts into a
// graph.Sink. Resolution is syntactic or, for Go, driven by go/types; it
// never tries to bind overloads or generics precisely.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/felipestanzani/beyondsight/internal/graph"
)

// ErrNoSources is returned when no enabled producer recognises the project.
var ErrNoSources = errors.New("no supported source files found")

// Producer emits source facts for a project root.
type Producer interface {
	Produce(ctx context.Context, root string, sink graph.Sink) error
}

// LanguageProducer is a Producer for one language.
type LanguageProducer interface {
	Producer
	// Language returns the language identifier, e.g. "go".
	Language() string
	// Detect reports whether root contains sources for the language.
	Detect(root string) bool
}

// Composite runs every enabled language producer that detects sources.
type Composite struct {
	producers []LanguageProducer
	logger    *slog.Logger
}

// New creates a composite producer for the given languages.
func New(languages []string, logger *slog.Logger) (*Composite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Composite{logger: logger}
	for _, lang := range languages {
		switch strings.ToLower(strings.TrimSpace(lang)) {
		case "go":
			c.producers = append(c.producers, NewGoProducer(logger))
		case "java":
			if !JavaAvailable() {
				logger.Warn("java analysis requires a cgo build, skipping")
				continue
			}
			c.producers = append(c.producers, NewJavaProducer(logger))
		default:
			return nil, fmt.Errorf("unsupported language: %s", lang)
		}
	}
	return c, nil
}

// NewComposite wraps explicit producers.
func NewComposite(logger *slog.Logger, producers ...LanguageProducer) *Composite {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composite{producers: producers, logger: logger}
}

// Languages returns the enabled language identifiers.
func (c *Composite) Languages() []string {
	langs := make([]string, len(c.producers))
	for i, p := range c.producers {
		langs[i] = p.Language()
	}
	return langs
}

// Produce implements Producer.
func (c *Composite) Produce(ctx context.Context, root string, sink graph.Sink) error {
	ran := 0
	for _, p := range c.producers {
		if !p.Detect(root) {
			continue
		}
		c.logger.Info("analyzing sources", "language", p.Language(), "path", root)
		if err := p.Produce(ctx, root, sink); err != nil {
			return fmt.Errorf("%s analysis: %w", p.Language(), err)
		}
		ran++
	}
	if ran == 0 {
		return fmt.Errorf("%s: %w", root, ErrNoSources)
	}
	return nil
}

// SkipDir reports whether a directory is never scanned: hidden, vendored
// and build output directories.
func SkipDir(name string) bool {
	if strings.HasPrefix(name, ".") && name != "." {
		return true
	}
	switch name {
	case "vendor", "node_modules", "testdata", "build", "target", "out":
		return true
	}
	return false
}

// findFiles returns the files under root with the given extension, in
// lexical order.
func findFiles(ctx context.Context, root, ext string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ext) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// hasFile reports whether any file under root has the extension.
func hasFile(root, ext string) bool {
	errFound := errors.New("found")
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ext) {
			return errFound
		}
		return nil
	})
	return errors.Is(err, errFound)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
