package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
	apperrors "github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSource struct {
	mu      sync.Mutex
	entries map[lexicon.Ref]index.Entry
	lists   atomic.Int32
}

func newMemSource(entities ...lexicon.Entity) *memSource {
	s := &memSource{entries: make(map[lexicon.Ref]index.Entry)}
	for _, e := range entities {
		s.put(e)
	}
	return s
}

func (s *memSource) put(e lexicon.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Ref()] = indexer.BuildIndex(e)
}

func (s *memSource) ListIndexEntries(_ context.Context, lang lexicon.Lang) ([]index.Entry, error) {
	s.lists.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []index.Entry
	for _, e := range s.entries {
		if e.Lang == lang {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memSource) GetIndexEntry(_ context.Context, ref lexicon.Ref) (index.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[ref]
	if !ok {
		return index.Entry{}, apperrors.ErrEntityNotFound
	}
	return e, nil
}

var (
	quota = lexicon.Entity{Kind: lexicon.KindTerm, ID: "t1", Value: "Quota (gender)", Lang: lexicon.LangGerman, Variants: []string{"Quote"}}
	frau  = lexicon.Entity{Kind: lexicon.KindTerm, ID: "t2", Value: "Frauenquote", Lang: lexicon.LangGerman}
	race  = lexicon.Entity{Kind: lexicon.KindTranslation, ID: "x1", TermID: "t3", Value: "race", Lang: lexicon.LangEnglish}
)

func joinTokens(tokens []TextToken) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

func TestLocalAnalyze(t *testing.T) {
	local := NewLocal(newMemSource(quota, frau, race), nil)
	text := "Die Quote und die Frauenquote: eine Quota (gender) Debatte."

	tokens, err := local.Analyze(context.Background(), text, lexicon.LangGerman)
	require.NoError(t, err)
	assert.Equal(t, text, joinTokens(tokens))

	var phrases []TextToken
	for _, tok := range tokens {
		if tok.Type == TokenPhrase {
			phrases = append(phrases, tok)
		}
	}
	require.Len(t, phrases, 3)
	assert.Equal(t, "Quote", phrases[0].Text)
	assert.Equal(t, []lexicon.Ref{quota.Ref()}, phrases[0].Refs)
	assert.Equal(t, "Frauenquote", phrases[1].Text)
	assert.Equal(t, "Quota (gender)", phrases[2].Text)

	assert.Equal(t, []lexicon.Ref{quota.Ref(), frau.Ref()}, CollectRefs(tokens))
}

func TestLocalAnalyzeIsCaseInsensitive(t *testing.T) {
	local := NewLocal(newMemSource(race), nil)
	tokens, err := local.Analyze(context.Background(), "RACE matters", lexicon.LangEnglish)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, TextToken{Type: TokenPhrase, Text: "RACE", Refs: []lexicon.Ref{race.Ref()}}, tokens[0])
}

func TestLocalAnalyzeNoMatches(t *testing.T) {
	local := NewLocal(newMemSource(), nil)
	tokens, err := local.Analyze(context.Background(), "nothing here", lexicon.LangEnglish)
	require.NoError(t, err)
	assert.Equal(t, []TextToken{{Type: TokenText, Text: "nothing here"}}, tokens)

	tokens, err = local.Analyze(context.Background(), "", lexicon.LangEnglish)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestLocalLoadsOncePerLanguage(t *testing.T) {
	src := newMemSource(quota)
	reg := prometheus.NewRegistry()
	met := metrics.New(reg)
	local := NewLocal(src, met)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = local.Analyze(context.Background(), "Quote", lexicon.LangGerman)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), src.lists.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(met.LocalIndexEntries.WithLabelValues("de")))
	assert.Equal(t, 8.0, testutil.ToFloat64(met.AnalysisCallsTotal.WithLabelValues("local", "ok")))
}

func TestLocalRefresh(t *testing.T) {
	src := newMemSource(quota)
	local := NewLocal(src, nil)
	ctx := context.Background()

	_, err := local.Analyze(ctx, "warmup", lexicon.LangGerman)
	require.NoError(t, err)

	src.put(frau)
	require.NoError(t, local.Refresh(ctx, frau.Ref()))
	tokens, err := local.Analyze(ctx, "Frauenquote", lexicon.LangGerman)
	require.NoError(t, err)
	assert.Equal(t, TokenPhrase, tokens[0].Type)

	src.mu.Lock()
	delete(src.entries, frau.Ref())
	src.mu.Unlock()
	require.NoError(t, local.Refresh(ctx, frau.Ref()))
	tokens, err = local.Analyze(ctx, "Frauenquote", lexicon.LangGerman)
	require.NoError(t, err)
	assert.Equal(t, TokenText, tokens[0].Type)
}

func TestRemoteAnalyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req remoteRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, lexicon.LangEnglish, req.Lang)
		_ = json.NewEncoder(w).Encode([]TextToken{
			{Type: TokenPhrase, Text: "race", Refs: []lexicon.Ref{race.Ref()}},
			{Type: TokenText, Text: " card"},
		})
	}))
	defer srv.Close()

	remote := NewRemote(RemoteConfig{URL: srv.URL, Timeout: time.Second}, nil)
	tokens, err := remote.Analyze(context.Background(), "race card", lexicon.LangEnglish)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, []lexicon.Ref{race.Ref()}, tokens[0].Refs)
}

func TestRemoteTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	remote := NewRemote(RemoteConfig{URL: srv.URL, Timeout: 20 * time.Millisecond, FailureThreshold: 5}, nil)
	_, err := remote.Analyze(context.Background(), "x", lexicon.LangEnglish)
	require.ErrorIs(t, err, apperrors.ErrAnalysisUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRemoteFailuresOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	met := metrics.New(prometheus.NewRegistry())
	remote := NewRemote(RemoteConfig{URL: srv.URL, Timeout: time.Second, FailureThreshold: 2, ResetTimeout: time.Hour}, met)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := remote.Analyze(ctx, "x", lexicon.LangGerman)
		require.ErrorIs(t, err, apperrors.ErrAnalysisUnavailable)
		assert.Contains(t, err.Error(), "503")
	}
	_, err := remote.Analyze(ctx, "x", lexicon.LangGerman)
	require.ErrorIs(t, err, apperrors.ErrAnalysisUnavailable)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, resilience.StateOpen, remote.Breaker().State())
	assert.Equal(t, 1.0, testutil.ToFloat64(met.CircuitBreakerState.WithLabelValues("analysis")))
	assert.Equal(t, 3.0, testutil.ToFloat64(met.AnalysisCallsTotal.WithLabelValues("remote", "error")))
}

type memKV struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]string)}
}

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memKV) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

type countingAnalyzer struct {
	calls atomic.Int32
	err   error
}

func (c *countingAnalyzer) Analyze(_ context.Context, text string, _ lexicon.Lang) ([]TextToken, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []TextToken{{Type: TokenText, Text: text}}, nil
}

func TestCachedAnalyze(t *testing.T) {
	inner := &countingAnalyzer{}
	kv := newMemKV()
	met := metrics.New(prometheus.NewRegistry())
	cached := NewCached(inner, kv, time.Minute, met)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tokens, err := cached.Analyze(ctx, "hello", lexicon.LangEnglish)
		require.NoError(t, err)
		assert.Equal(t, "hello", joinTokens(tokens))
	}
	_, err := cached.Analyze(ctx, "hello", lexicon.LangGerman)
	require.NoError(t, err)

	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(met.CacheHitsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(met.CacheMissesTotal))

	require.NoError(t, cached.Invalidate(ctx))
	_, err = cached.Analyze(ctx, "hello", lexicon.LangEnglish)
	require.NoError(t, err)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestCachedFallsThroughOnRedisErrors(t *testing.T) {
	inner := &countingAnalyzer{}
	kv := newMemKV()
	kv.getErr = errors.New("connection refused")
	cached := NewCached(inner, kv, time.Minute, nil)

	_, err := cached.Analyze(context.Background(), "hello", lexicon.LangEnglish)
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedDoesNotStoreErrors(t *testing.T) {
	inner := &countingAnalyzer{err: apperrors.ErrAnalysisUnavailable}
	kv := newMemKV()
	cached := NewCached(inner, kv, time.Minute, nil)

	_, err := cached.Analyze(context.Background(), "hello", lexicon.LangEnglish)
	require.ErrorIs(t, err, apperrors.ErrAnalysisUnavailable)
	assert.Empty(t, kv.data)
}

type recordingRefresher struct{ refs []lexicon.Ref }

func (r *recordingRefresher) Refresh(_ context.Context, ref lexicon.Ref) error {
	r.refs = append(r.refs, ref)
	return nil
}

func TestHandleInvalidation(t *testing.T) {
	refresher := &recordingRefresher{}
	kv := newMemKV()
	kv.data[keyPrefix+"en:abc"] = "[]"
	kv.data["other"] = "x"
	cached := NewCached(&countingAnalyzer{}, kv, time.Minute, nil)
	handler := HandleInvalidation(refresher, cached)

	ev := lexicon.InvalidateEvent{Ref: race.Ref(), Lang: lexicon.LangEnglish}
	b, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), []byte(race.Ref().Key()), b))
	assert.Equal(t, []lexicon.Ref{race.Ref()}, refresher.refs)
	assert.Equal(t, map[string]string{"other": "x"}, kv.data)

	assert.NoError(t, handler(context.Background(), nil, []byte("garbage")))
	assert.NoError(t, HandleInvalidation(nil, nil)(context.Background(), nil, b))
}

func ExampleCollectRefs() {
	tokens := []TextToken{
		{Type: TokenPhrase, Text: "race", Refs: []lexicon.Ref{race.Ref()}},
		{Type: TokenText, Text: " and "},
		{Type: TokenPhrase, Text: "race", Refs: []lexicon.Ref{race.Ref()}},
	}
	fmt.Println(CollectRefs(tokens))
	// Output: [translation/x1]
}

// BenchmarkLocalAnalyze measures phrase matching over glossaries of
// increasing size once the language index is warm.
func BenchmarkLocalAnalyze(b *testing.B) {
	text := strings.Repeat("Die Frauenquote in der Verwaltung liegt bei 40 Prozent, die Quote steigt. ", 20)
	for _, size := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("entries_%d", size), func(b *testing.B) {
			src := newMemSource(quota, frau)
			for i := range size {
				src.put(lexicon.Entity{
					Kind:  lexicon.KindTerm,
					ID:    fmt.Sprintf("bench-%d", i),
					Value: fmt.Sprintf("Begriff %d Nummer", i),
					Lang:  lexicon.LangGerman,
				})
			}
			local := NewLocal(src, nil)
			ctx := context.Background()
			if _, err := local.Analyze(ctx, text, lexicon.LangGerman); err != nil {
				b.Fatal(err)
			}
			b.ReportAllocs()
			for b.Loop() {
				if _, err := local.Analyze(ctx, text, lexicon.LangGerman); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
