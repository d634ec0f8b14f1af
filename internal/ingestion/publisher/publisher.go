// Package publisher persists Terms and Translations and publishes a
// ChangeEvent for every committed write so the indexer can maintain the
// lemma index.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
	apperrors "github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/metrics"
)

// EntityStore is the part of the document store used by the write path.
type EntityStore interface {
	GetEntity(ctx context.Context, ref lexicon.Ref) (lexicon.Entity, error)
	CreateEntity(ctx context.Context, e lexicon.Entity) (lexicon.Entity, error)
	UpdateEntity(ctx context.Context, ref lexicon.Ref, value string, variants []string) (before, after lexicon.Entity, err error)
	DeleteEntity(ctx context.Context, ref lexicon.Ref) ([]lexicon.Entity, error)
}

// Producer is the Kafka side of the write path. Cascaded deletes go out as
// one batch.
type Producer interface {
	kafka.Publisher
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Publisher coordinates entity persistence and change event production.
type Publisher struct {
	store    EntityStore
	producer Producer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Publisher. met may be nil.
func New(store EntityStore, producer Producer, met *metrics.Metrics) *Publisher {
	return &Publisher{
		store:    store,
		producer: producer,
		metrics:  met,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// CreateTerm stores a new Term.
func (p *Publisher) CreateTerm(ctx context.Context, value string, lang lexicon.Lang, variants []string) (*ingestion.EntityResponse, error) {
	return p.create(ctx, lexicon.Entity{
		Kind:     lexicon.KindTerm,
		Value:    value,
		Lang:     lang,
		Variants: variants,
	})
}

// CreateTranslation stores a Translation of termID. The translation must be
// in the language opposite to its term.
func (p *Publisher) CreateTranslation(ctx context.Context, termID, value string, lang lexicon.Lang, variants []string) (*ingestion.EntityResponse, error) {
	term, err := p.store.GetEntity(ctx, lexicon.Ref{Kind: lexicon.KindTerm, ID: termID, TermID: termID})
	if err != nil {
		return nil, err
	}
	if lang != term.Lang.Other() {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"translation of a %s term must be in %s", term.Lang, term.Lang.Other())
	}
	return p.create(ctx, lexicon.Entity{
		Kind:     lexicon.KindTranslation,
		TermID:   termID,
		Value:    value,
		Lang:     lang,
		Variants: variants,
	})
}

func (p *Publisher) create(ctx context.Context, e lexicon.Entity) (*ingestion.EntityResponse, error) {
	created, err := p.store.CreateEntity(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", e.Kind, err)
	}
	ok := p.publish(ctx, lexicon.ChangeEvent{
		Op:    lexicon.OpCreate,
		Ref:   created.Ref(),
		After: &created,
	})
	return &ingestion.EntityResponse{Entity: created, Indexing: indexing(ok)}, nil
}

// Update replaces value and variants of an existing entity.
func (p *Publisher) Update(ctx context.Context, ref lexicon.Ref, value string, variants []string) (*ingestion.EntityResponse, error) {
	before, after, err := p.store.UpdateEntity(ctx, ref, value, variants)
	if err != nil {
		return nil, fmt.Errorf("updating %s: %w", ref, err)
	}
	ok := p.publish(ctx, lexicon.ChangeEvent{
		Op:     lexicon.OpUpdate,
		Ref:    after.Ref(),
		Before: &before,
		After:  &after,
	})
	return &ingestion.EntityResponse{Entity: after, Indexing: indexing(ok)}, nil
}

// Delete removes an entity. Deleting a Term also removes its Translations
// and one delete event is published per removed row.
func (p *Publisher) Delete(ctx context.Context, ref lexicon.Ref) (*ingestion.DeleteResponse, error) {
	deleted, err := p.store.DeleteEntity(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("deleting %s: %w", ref, err)
	}
	resp := &ingestion.DeleteResponse{
		Deleted:  make([]lexicon.Ref, 0, len(deleted)),
		Indexing: ingestion.IndexingPending,
	}
	now := time.Now().UTC()
	events := make([]kafka.Event, 0, len(deleted))
	for _, e := range deleted {
		resp.Deleted = append(resp.Deleted, e.Ref())
		events = append(events, kafka.Event{
			Key: e.Ref().Key(),
			Value: lexicon.ChangeEvent{
				Op:     lexicon.OpDelete,
				Ref:    e.Ref(),
				Before: &e,
				At:     now,
			},
		})
	}
	if len(events) == 0 {
		return resp, nil
	}
	if err := p.producer.PublishBatch(ctx, events); err != nil {
		p.logger.Error("failed to publish delete events, index entries stale until next seed",
			"ref", ref.Key(),
			"events", len(events),
			"error", err,
		)
		if p.metrics != nil {
			p.metrics.ChangePublishFailures.WithLabelValues(string(ref.Kind)).Add(float64(len(events)))
		}
		resp.Indexing = ingestion.IndexingStale
	}
	return resp, nil
}

// publish sends ev and reports whether it was accepted. The write is
// already committed, so a failure is logged and counted, not returned.
func (p *Publisher) publish(ctx context.Context, ev lexicon.ChangeEvent) bool {
	ev.At = time.Now().UTC()
	err := p.producer.Publish(ctx, kafka.Event{Key: ev.Ref.Key(), Value: ev})
	if err == nil {
		return true
	}
	p.logger.Error("failed to publish change event, index entry stale until next seed",
		"op", ev.Op,
		"ref", ev.Ref.Key(),
		"error", err,
	)
	if p.metrics != nil {
		p.metrics.ChangePublishFailures.WithLabelValues(string(ev.Ref.Kind)).Inc()
	}
	return false
}

func indexing(published bool) string {
	if published {
		return ingestion.IndexingPending
	}
	return ingestion.IndexingStale
}
