package store

import (
	"sort"
	"sync"

	"github.com/psantana5/costime/pkg/costime"
)

type summaryKey struct {
	tag   string
	label string
	kind  costime.Kind
}

// MemoryStore aggregates in memory; history is lost on exit
type MemoryStore struct {
	mu        sync.RWMutex
	summaries map[summaryKey]*Summary
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		summaries: make(map[summaryKey]*Summary),
	}
}

// Record folds m into its summary
func (s *MemoryStore) Record(m costime.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := summaryKey{tag: m.Tag, label: m.Label, kind: m.Kind}
	sum, ok := s.summaries[key]
	if !ok {
		sum = &Summary{Tag: m.Tag, Label: m.Label, Kind: m.Kind, Min: m.Elapsed, Max: m.Elapsed}
		s.summaries[key] = sum
	}

	sum.Count++
	sum.Total += m.Elapsed
	if m.Elapsed < sum.Min {
		sum.Min = m.Elapsed
	}
	if m.Elapsed > sum.Max {
		sum.Max = m.Elapsed
	}
	if m.EndedAt.After(sum.Last) {
		sum.Last = m.EndedAt
	}
	return nil
}

// Summaries returns copies ordered by tag, label, kind
func (s *MemoryStore) Summaries() ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.summaries))
	for _, sum := range s.summaries {
		out = append(out, *sum)
	}
	sortSummaries(out)
	return out, nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

func sortSummaries(out []Summary) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tag != out[j].Tag {
			return out[i].Tag < out[j].Tag
		}
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].Kind < out[j].Kind
	})
}
