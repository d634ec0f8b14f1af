// Package index holds the derived lemma index: the persisted entry format and
// an in-memory view used to find indexed phrases inside arbitrary text.
package index

import (
	"slices"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
)

type candidate struct {
	ref    lexicon.Ref
	lemmas []string
}

// Match is a run of text lemmas [First, Last] that equals at least one
// indexed lemma sequence. Refs lists every entity that matched the run.
type Match struct {
	First int
	Last  int
	Refs  []lexicon.Ref
}

// MemoryIndex maps the normalized first lemma of every indexed sequence to
// the sequences starting with it. Candidates keep the stored order, so the
// most specific phrasing of an entity is tried first.
type MemoryIndex struct {
	mu      sync.RWMutex
	byFirst map[string][]candidate
	entries map[lexicon.Ref]struct{}
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		byFirst: make(map[string][]candidate),
		entries: make(map[lexicon.Ref]struct{}),
	}
}

// Add registers every lemma sequence of entry. Re-adding a ref replaces it.
func (m *MemoryIndex) Add(entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[entry.Ref]; exists {
		m.removeLocked(entry.Ref)
	}
	for _, seq := range entry.Lemmas {
		if len(seq) == 0 {
			continue
		}
		normalized := make([]string, len(seq))
		for i, l := range seq {
			normalized[i] = tokenizer.Normalize(l)
		}
		m.byFirst[normalized[0]] = append(m.byFirst[normalized[0]], candidate{
			ref:    entry.Ref,
			lemmas: normalized,
		})
	}
	m.entries[entry.Ref] = struct{}{}
}

// Remove drops every sequence registered for ref.
func (m *MemoryIndex) Remove(ref lexicon.Ref) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(ref)
}

func (m *MemoryIndex) removeLocked(ref lexicon.Ref) {
	for first, cands := range m.byFirst {
		kept := slices.DeleteFunc(cands, func(c candidate) bool { return c.ref == ref })
		if len(kept) == 0 {
			delete(m.byFirst, first)
			continue
		}
		m.byFirst[first] = kept
	}
	delete(m.entries, ref)
}

// Find scans text lemmas left to right and reports, at each position, the
// longest indexed sequence starting there. Matches never overlap.
func (m *MemoryIndex) Find(lemmas []tokenizer.Lemma) []Match {
	m.mu.RLock()
	defer m.mu.RUnlock()

	normalized := make([]string, len(lemmas))
	for i, l := range lemmas {
		normalized[i] = tokenizer.Normalize(l.Text)
	}

	var matches []Match
	for i := 0; i < len(normalized); {
		best := 0
		var refs []lexicon.Ref
		for _, c := range m.byFirst[normalized[i]] {
			k := len(c.lemmas)
			if k < best || i+k > len(normalized) || !slices.Equal(c.lemmas, normalized[i:i+k]) {
				continue
			}
			if k > best {
				best = k
				refs = refs[:0]
			}
			if !slices.Contains(refs, c.ref) {
				refs = append(refs, c.ref)
			}
		}
		if best == 0 {
			i++
			continue
		}
		matches = append(matches, Match{First: i, Last: i + best - 1, Refs: slices.Clone(refs)})
		i += best
	}
	return matches
}

func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byFirst = make(map[string][]candidate)
	m.entries = make(map[lexicon.Ref]struct{})
}
