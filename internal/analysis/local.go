package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
	apperrors "github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// IndexSource reads persisted lemma index entries.
type IndexSource interface {
	ListIndexEntries(ctx context.Context, lang lexicon.Lang) ([]index.Entry, error)
	GetIndexEntry(ctx context.Context, ref lexicon.Ref) (index.Entry, error)
}

// Local analyzes text against an in-memory copy of the stored index. Each
// language is loaded on first use and then kept current through Refresh.
type Local struct {
	source  IndexSource
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.RWMutex
	indexes map[lexicon.Lang]*index.MemoryIndex
	loads   singleflight.Group
}

func NewLocal(source IndexSource, met *metrics.Metrics) *Local {
	return &Local{
		source:  source,
		metrics: met,
		logger:  slog.Default().With("component", "local-analyzer"),
		indexes: make(map[lexicon.Lang]*index.MemoryIndex),
	}
}

// Analyze finds, left to right, the longest indexed lemma sequence at each
// position and reports it as a phrase token.
func (l *Local) Analyze(ctx context.Context, text string, lang lexicon.Lang) ([]TextToken, error) {
	start := time.Now()
	idx, err := l.index(ctx, lang)
	if err != nil {
		l.observe(start, "error")
		return nil, err
	}

	lemmas := tokenizer.Split(text)
	matches := idx.Find(lemmas)
	tokens := make([]TextToken, 0, 2*len(matches)+1)
	pos := 0
	for _, m := range matches {
		from, to := lemmas[m.First].Start, lemmas[m.Last].End
		if from > pos {
			tokens = append(tokens, TextToken{Type: TokenText, Text: text[pos:from]})
		}
		tokens = append(tokens, TextToken{Type: TokenPhrase, Text: text[from:to], Refs: m.Refs})
		pos = to
	}
	if pos < len(text) {
		tokens = append(tokens, TextToken{Type: TokenText, Text: text[pos:]})
	}
	l.observe(start, "ok")
	return tokens, nil
}

func (l *Local) index(ctx context.Context, lang lexicon.Lang) (*index.MemoryIndex, error) {
	l.mu.RLock()
	idx, ok := l.indexes[lang]
	l.mu.RUnlock()
	if ok {
		return idx, nil
	}

	v, err, _ := l.loads.Do(string(lang), func() (any, error) {
		l.mu.RLock()
		idx, ok := l.indexes[lang]
		l.mu.RUnlock()
		if ok {
			return idx, nil
		}
		entries, err := l.source.ListIndexEntries(ctx, lang)
		if err != nil {
			return nil, fmt.Errorf("loading %s index: %w", lang, err)
		}
		idx = index.NewMemoryIndex()
		for _, e := range entries {
			idx.Add(e)
		}
		l.mu.Lock()
		l.indexes[lang] = idx
		l.mu.Unlock()
		l.setSize(lang, idx)
		l.logger.Info("index loaded", "lang", lang, "entries", idx.Size())
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*index.MemoryIndex), nil
}

// Refresh re-reads one entry after an index write. Languages that have not
// been loaded yet are left alone; they read the current state on first use.
func (l *Local) Refresh(ctx context.Context, ref lexicon.Ref) error {
	entry, err := l.source.GetIndexEntry(ctx, ref)
	missing := errors.Is(err, apperrors.ErrEntityNotFound)
	if err != nil && !missing {
		return fmt.Errorf("refreshing %s: %w", ref, err)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	for lang, idx := range l.indexes {
		if !missing && lang == entry.Lang {
			idx.Add(entry)
		} else {
			idx.Remove(ref)
		}
		l.setSize(lang, idx)
	}
	return nil
}

// Reset drops every loaded language.
func (l *Local) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.indexes)
}

func (l *Local) observe(start time.Time, result string) {
	if l.metrics == nil {
		return
	}
	l.metrics.AnalysisCallsTotal.WithLabelValues("local", result).Inc()
	l.metrics.AnalysisLatency.WithLabelValues("local").Observe(time.Since(start).Seconds())
}

func (l *Local) setSize(lang lexicon.Lang, idx *index.MemoryIndex) {
	if l.metrics == nil {
		return
	}
	l.metrics.LocalIndexEntries.WithLabelValues(string(lang)).Set(float64(idx.Size()))
}
