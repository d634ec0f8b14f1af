package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
	apperrors "github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	next     int
	entities map[lexicon.Ref]lexicon.Entity
}

func newFakeStore() *fakeStore {
	return &fakeStore{entities: make(map[lexicon.Ref]lexicon.Entity)}
}

func key(kind lexicon.Kind, id string) lexicon.Ref {
	return lexicon.Ref{Kind: kind, ID: id}
}

func (s *fakeStore) GetEntity(_ context.Context, ref lexicon.Ref) (lexicon.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[key(ref.Kind, ref.ID)]
	if !ok {
		return lexicon.Entity{}, fmt.Errorf("%s: %w", ref, apperrors.ErrEntityNotFound)
	}
	return e, nil
}

func (s *fakeStore) CreateEntity(_ context.Context, e lexicon.Entity) (lexicon.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	e.ID = fmt.Sprintf("%s-%d", e.Kind, s.next)
	s.entities[key(e.Kind, e.ID)] = e
	return e, nil
}

func (s *fakeStore) UpdateEntity(_ context.Context, ref lexicon.Ref, value string, variants []string) (lexicon.Entity, lexicon.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before, ok := s.entities[key(ref.Kind, ref.ID)]
	if !ok {
		return before, before, fmt.Errorf("%s: %w", ref, apperrors.ErrEntityNotFound)
	}
	after := before
	after.Value = value
	after.Variants = variants
	s.entities[key(ref.Kind, ref.ID)] = after
	return before, after, nil
}

func (s *fakeStore) DeleteEntity(_ context.Context, ref lexicon.Ref) ([]lexicon.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[key(ref.Kind, ref.ID)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, apperrors.ErrEntityNotFound)
	}
	var deleted []lexicon.Entity
	if ref.Kind == lexicon.KindTerm {
		for k, child := range s.entities {
			if child.Kind == lexicon.KindTranslation && child.TermID == ref.ID {
				deleted = append(deleted, child)
				delete(s.entities, k)
			}
		}
	}
	delete(s.entities, key(ref.Kind, ref.ID))
	return append(deleted, e), nil
}

type fakeProducer struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (p *fakeProducer) Publish(_ context.Context, ev kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakeProducer) PublishBatch(_ context.Context, evs []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evs...)
	return nil
}

func (p *fakeProducer) changes(t *testing.T) []lexicon.ChangeEvent {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]lexicon.ChangeEvent, 0, len(p.events))
	for _, ev := range p.events {
		ce, ok := ev.Value.(lexicon.ChangeEvent)
		require.True(t, ok)
		assert.Equal(t, ce.Ref.Key(), ev.Key)
		out = append(out, ce)
	}
	return out
}

func TestCreateTermPublishesCreate(t *testing.T) {
	store, prod := newFakeStore(), &fakeProducer{}
	p := New(store, prod, nil)

	resp, err := p.CreateTerm(context.Background(), "Quota", lexicon.LangGerman, []string{"Quote"})
	require.NoError(t, err)
	assert.Equal(t, ingestion.IndexingPending, resp.Indexing)
	assert.Equal(t, "Quota", resp.Entity.Value)

	events := prod.changes(t)
	require.Len(t, events, 1)
	assert.Equal(t, lexicon.OpCreate, events[0].Op)
	assert.Nil(t, events[0].Before)
	require.NotNil(t, events[0].After)
	assert.Equal(t, resp.Entity.ID, events[0].Ref.ID)
	assert.False(t, events[0].At.IsZero())
}

func TestCreateTranslationChecksParent(t *testing.T) {
	store, prod := newFakeStore(), &fakeProducer{}
	p := New(store, prod, nil)
	ctx := context.Background()

	term, err := p.CreateTerm(ctx, "Quote", lexicon.LangGerman, nil)
	require.NoError(t, err)

	_, err = p.CreateTranslation(ctx, term.Entity.ID, "Kontingent", lexicon.LangGerman, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatusCode(err))

	_, err = p.CreateTranslation(ctx, "missing", "quota", lexicon.LangEnglish, nil)
	assert.ErrorIs(t, err, apperrors.ErrEntityNotFound)

	tr, err := p.CreateTranslation(ctx, term.Entity.ID, "quota", lexicon.LangEnglish, nil)
	require.NoError(t, err)
	assert.Equal(t, term.Entity.ID, tr.Entity.TermID)
	assert.Equal(t, term.Entity.ID, tr.Entity.Ref().TermID)
	assert.Len(t, prod.changes(t), 2)
}

func TestUpdateCarriesBeforeAndAfter(t *testing.T) {
	store, prod := newFakeStore(), &fakeProducer{}
	p := New(store, prod, nil)
	ctx := context.Background()

	created, err := p.CreateTerm(ctx, "Quota", lexicon.LangEnglish, nil)
	require.NoError(t, err)
	_, err = p.Update(ctx, created.Entity.Ref(), "Quota system", []string{"quotas"})
	require.NoError(t, err)

	events := prod.changes(t)
	require.Len(t, events, 2)
	upd := events[1]
	assert.Equal(t, lexicon.OpUpdate, upd.Op)
	assert.Equal(t, "Quota", upd.Before.Value)
	assert.Equal(t, "Quota system", upd.After.Value)

	_, err = p.Update(ctx, lexicon.Ref{Kind: lexicon.KindTerm, ID: "nope"}, "x", nil)
	assert.ErrorIs(t, err, apperrors.ErrEntityNotFound)
}

func TestDeleteTermCascades(t *testing.T) {
	store, prod := newFakeStore(), &fakeProducer{}
	p := New(store, prod, nil)
	ctx := context.Background()

	term, err := p.CreateTerm(ctx, "Quote", lexicon.LangGerman, nil)
	require.NoError(t, err)
	_, err = p.CreateTranslation(ctx, term.Entity.ID, "quota", lexicon.LangEnglish, nil)
	require.NoError(t, err)

	resp, err := p.Delete(ctx, term.Entity.Ref())
	require.NoError(t, err)
	assert.Len(t, resp.Deleted, 2)
	assert.Equal(t, ingestion.IndexingPending, resp.Indexing)

	var deletes []lexicon.ChangeEvent
	for _, ev := range prod.changes(t) {
		if ev.Op == lexicon.OpDelete {
			deletes = append(deletes, ev)
		}
	}
	require.Len(t, deletes, 2)
	assert.Equal(t, lexicon.KindTranslation, deletes[0].Ref.Kind)
	assert.Equal(t, lexicon.KindTerm, deletes[1].Ref.Kind)
	for _, ev := range deletes {
		assert.Nil(t, ev.After)
		require.NotNil(t, ev.Before)
	}
}

func TestPublishFailureKeepsWrite(t *testing.T) {
	reg := prometheus.NewRegistry()
	met := metrics.New(reg)
	store, prod := newFakeStore(), &fakeProducer{err: errors.New("broker down")}
	p := New(store, prod, met)

	resp, err := p.CreateTerm(context.Background(), "Quota", lexicon.LangEnglish, nil)
	require.NoError(t, err)
	assert.Equal(t, ingestion.IndexingStale, resp.Indexing)
	assert.Equal(t, 1.0, testutil.ToFloat64(met.ChangePublishFailures.WithLabelValues("term")))

	_, err = store.GetEntity(context.Background(), resp.Entity.Ref())
	assert.NoError(t, err)

	del, err := p.Delete(context.Background(), resp.Entity.Ref())
	require.NoError(t, err)
	assert.Equal(t, ingestion.IndexingStale, del.Indexing)
	assert.Len(t, del.Deleted, 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(met.ChangePublishFailures.WithLabelValues("term")))
}
