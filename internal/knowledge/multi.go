package knowledge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Multi fans a lookup out to several backends and merges their facts in backend order.
// A failing backend is logged and skipped; the lookup only fails when every backend fails.
type Multi struct {
	backends []namedLookup
	logger   *zap.Logger
}

type namedLookup struct {
	name   string
	lookup Lookup
}

// NewMulti creates an empty fan-out lookup
func NewMulti(logger *zap.Logger) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{logger: logger}
}

// Add registers a backend under name
func (m *Multi) Add(name string, lookup Lookup) *Multi {
	m.backends = append(m.backends, namedLookup{name: name, lookup: lookup})
	return m
}

// Len returns the number of registered backends
func (m *Multi) Len() int {
	return len(m.backends)
}

// Lookup implements Lookup
func (m *Multi) Lookup(ctx context.Context, entities []string, domain Domain) ([]Fact, error) {
	if len(m.backends) == 0 || len(Normalize(entities)) == 0 {
		return []Fact{}, nil
	}

	results := make([][]Fact, len(m.backends))
	errs := make([]error, len(m.backends))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range m.backends {
		g.Go(func() error {
			facts, err := b.lookup.Lookup(gctx, entities, domain)
			if err != nil {
				m.logger.Warn("knowledge_backend_failed",
					zap.String("backend", b.name),
					zap.String("domain", string(domain)),
					zap.Error(err),
				)
				errs[i] = fmt.Errorf("%s: %w", b.name, err)
				return nil
			}
			results[i] = facts
			return nil
		})
	}
	_ = g.Wait()

	var merged []Fact
	failed := 0
	for i := range m.backends {
		if errs[i] != nil {
			failed++
			continue
		}
		merged = append(merged, results[i]...)
	}
	if failed == len(m.backends) {
		return nil, fmt.Errorf("all knowledge backends failed: %w", errors.Join(errs...))
	}
	return Dedupe(merged), nil
}
