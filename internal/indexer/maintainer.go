package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
	apperrors "github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Store is the slice of the document store the maintainer needs.
// PutIndexEntry reports whether the stored blob actually changed.
type Store interface {
	GetEntity(ctx context.Context, ref lexicon.Ref) (lexicon.Entity, error)
	ListEntities(ctx context.Context, kind lexicon.Kind, afterID string, limit int) ([]lexicon.Entity, error)
	PutIndexEntry(ctx context.Context, entry index.Entry) (bool, error)
	DeleteIndexEntry(ctx context.Context, ref lexicon.Ref) error
	PruneIndexEntries(ctx context.Context, kind lexicon.Kind) ([]lexicon.Ref, error)
}

// Notifier is told about every index entry that was written or removed.
type Notifier interface {
	Notify(ctx context.Context, event lexicon.InvalidateEvent) error
}

// Outcome is the result of applying one change to the index.
type Outcome string

const (
	OutcomeWritten   Outcome = "written"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeDeleted   Outcome = "deleted"
	OutcomeSkipped   Outcome = "skipped"
)

// Summary counts the outcomes of a RebuildAll run.
type Summary struct {
	Written   int64 `json:"written"`
	Unchanged int64 `json:"unchanged"`
	Skipped   int64 `json:"skipped"`
	Pruned    int64 `json:"pruned"`
}

// Maintainer keeps the derived index in step with Terms and Translations.
type Maintainer struct {
	store    Store
	notifier Notifier
	metrics  *metrics.Metrics
	workers  int
	pageSize int
	logger   *slog.Logger
}

// Option configures a Maintainer.
type Option func(*Maintainer)

// WithNotifier publishes an InvalidateEvent after each index write.
func WithNotifier(n Notifier) Option {
	return func(m *Maintainer) { m.notifier = n }
}

// WithMetrics records outcomes and build latency.
func WithMetrics(met *metrics.Metrics) Option {
	return func(m *Maintainer) { m.metrics = met }
}

// WithRebuildLimits sets the RebuildAll worker count and page size.
func WithRebuildLimits(workers, pageSize int) Option {
	return func(m *Maintainer) {
		if workers > 0 {
			m.workers = workers
		}
		if pageSize > 0 {
			m.pageSize = pageSize
		}
	}
}

func NewMaintainer(store Store, opts ...Option) *Maintainer {
	m := &Maintainer{
		store:    store,
		workers:  4,
		pageSize: 500,
		logger:   slog.Default().With("component", "index-maintainer"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply handles one committed write. Deletes remove the entry; updates whose
// surface forms did not change are a no-op; everything else is rebuilt from
// the current stored entity.
func (m *Maintainer) Apply(ctx context.Context, ev lexicon.ChangeEvent) (Outcome, error) {
	if ev.After == nil {
		if err := m.store.DeleteIndexEntry(ctx, ev.Ref); err != nil {
			m.record(ev.Ref.Kind, "error")
			return "", fmt.Errorf("deleting index entry %s: %w", ev.Ref, err)
		}
		var lang lexicon.Lang
		if ev.Before != nil {
			lang = ev.Before.Lang
		}
		m.notify(ctx, ev.Ref, lang)
		m.record(ev.Ref.Kind, OutcomeDeleted)
		m.logger.Info("index entry deleted", "ref", ev.Ref.Key())
		return OutcomeDeleted, nil
	}

	if ev.Before != nil && sameSurface(*ev.Before, *ev.After) {
		m.record(ev.Ref.Kind, OutcomeUnchanged)
		m.logger.Debug("surface forms unchanged, skipping rebuild", "ref", ev.Ref.Key())
		return OutcomeUnchanged, nil
	}

	return m.Rebuild(ctx, ev.Ref)
}

// Rebuild recomputes the entry for ref from the stored entity. A missing
// entity is skipped, not reported as an error.
func (m *Maintainer) Rebuild(ctx context.Context, ref lexicon.Ref) (Outcome, error) {
	entity, err := m.store.GetEntity(ctx, ref)
	if errors.Is(err, apperrors.ErrEntityNotFound) {
		m.record(ref.Kind, OutcomeSkipped)
		m.logger.Info("entity no longer exists, skipping index build", "ref", ref.Key())
		return OutcomeSkipped, nil
	}
	if err != nil {
		m.record(ref.Kind, "error")
		return "", fmt.Errorf("loading %s: %w", ref, err)
	}
	return m.write(ctx, entity)
}

func (m *Maintainer) write(ctx context.Context, entity lexicon.Entity) (Outcome, error) {
	start := time.Now()
	entry := BuildIndex(entity)
	written, err := m.store.PutIndexEntry(ctx, entry)
	if err != nil {
		m.record(entity.Kind, "error")
		return "", fmt.Errorf("writing index entry %s: %w", entry.Ref, err)
	}
	if m.metrics != nil {
		m.metrics.IndexBuildDuration.WithLabelValues(string(entity.Kind)).Observe(time.Since(start).Seconds())
	}
	if !written {
		m.record(entity.Kind, OutcomeUnchanged)
		return OutcomeUnchanged, nil
	}
	m.notify(ctx, entry.Ref, entry.Lang)
	m.record(entity.Kind, OutcomeWritten)
	m.logger.Debug("index entry written",
		"ref", entry.Ref.Key(),
		"lang", entry.Lang,
		"sequences", len(entry.Lemmas),
	)
	return OutcomeWritten, nil
}

// RebuildAll pages through every Term and Translation and rebuilds its
// entry with a bounded number of workers, then removes entries whose entity
// is gone. Safe to re-run.
func (m *Maintainer) RebuildAll(ctx context.Context) (Summary, error) {
	var written, unchanged, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for _, kind := range []lexicon.Kind{lexicon.KindTerm, lexicon.KindTranslation} {
		after := ""
		for {
			page, err := m.store.ListEntities(gctx, kind, after, m.pageSize)
			if err != nil {
				_ = g.Wait()
				return Summary{}, fmt.Errorf("listing %s entities after %q: %w", kind, after, err)
			}
			for _, entity := range page {
				g.Go(func() error {
					outcome, err := m.write(gctx, entity)
					if err != nil {
						return err
					}
					switch outcome {
					case OutcomeWritten:
						written.Add(1)
					case OutcomeUnchanged:
						unchanged.Add(1)
					default:
						skipped.Add(1)
					}
					return nil
				})
			}
			if len(page) < m.pageSize {
				break
			}
			after = page[len(page)-1].ID
		}
	}

	err := g.Wait()
	summary := Summary{
		Written:   written.Load(),
		Unchanged: unchanged.Load(),
		Skipped:   skipped.Load(),
	}
	if err != nil {
		return summary, fmt.Errorf("rebuilding index: %w", err)
	}
	for _, kind := range []lexicon.Kind{lexicon.KindTerm, lexicon.KindTranslation} {
		pruned, err := m.store.PruneIndexEntries(ctx, kind)
		if err != nil {
			return summary, fmt.Errorf("pruning %s index: %w", kind, err)
		}
		for _, ref := range pruned {
			m.notify(ctx, ref, "")
			m.record(kind, OutcomeDeleted)
		}
		summary.Pruned += int64(len(pruned))
	}
	m.logger.Info("index rebuild complete",
		"written", summary.Written,
		"unchanged", summary.Unchanged,
		"pruned", summary.Pruned,
	)
	return summary, nil
}

func (m *Maintainer) notify(ctx context.Context, ref lexicon.Ref, lang lexicon.Lang) {
	if m.notifier == nil {
		return
	}
	ev := lexicon.InvalidateEvent{Ref: ref, Lang: lang, At: time.Now().UTC()}
	if err := m.notifier.Notify(ctx, ev); err != nil {
		m.logger.Warn("failed to publish index invalidation",
			"ref", ref.Key(),
			"error", err,
		)
	}
}

func (m *Maintainer) record(kind lexicon.Kind, outcome Outcome) {
	if m.metrics == nil {
		return
	}
	m.metrics.IndexBuildsTotal.WithLabelValues(string(kind), string(outcome)).Inc()
}

func sameSurface(before, after lexicon.Entity) bool {
	return before.Lang == after.Lang && slices.Equal(SurfaceForms(before), SurfaceForms(after))
}
