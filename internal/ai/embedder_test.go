package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	calls    int
	failures int
	vector   []float32
	lastText string
}

func (f *fakeProvider) Name() string {
	return "fake"
}

func (f *fakeProvider) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	f.calls++
	f.lastText = text
	if f.calls <= f.failures {
		return nil, errors.New("transient failure")
	}
	return f.vector, nil
}

func newTestEmbedder(p IEmbedProvider, cfg EmbedderConfig) (*Embedder, *[]time.Duration) {
	e := NewEmbedder(p, cfg)
	var slept []time.Duration
	e.sleep = func(d time.Duration) {
		slept = append(slept, d)
	}
	return e, &slept
}

func TestEmbedBlankInputSkipsNetwork(t *testing.T) {
	provider := &fakeProvider{vector: []float32{1}}
	e, _ := newTestEmbedder(provider, EmbedderConfig{Model: "m"})

	require.Nil(t, e.Embed(context.Background(), ""))
	require.Nil(t, e.Embed(context.Background(), "   "))
	require.Nil(t, e.Embed(context.Background(), " \n\t "))
	require.Zero(t, provider.calls)
}

func TestEmbedTruncatesInput(t *testing.T) {
	provider := &fakeProvider{vector: []float32{1}}
	e, _ := newTestEmbedder(provider, EmbedderConfig{Model: "m", MaxInputChars: 10})

	long := "abcdefghijklmnopqrstuvwxyz"
	require.NotNil(t, e.Embed(context.Background(), long))
	require.Equal(t, "abcdefghij", provider.lastText)
}

func TestEmbedRetriesWithBackoff(t *testing.T) {
	provider := &fakeProvider{failures: 2, vector: []float32{0.5}}
	e, slept := newTestEmbedder(provider, EmbedderConfig{Model: "m", MaxRetries: 3})

	vector := e.Embed(context.Background(), "some text")
	require.Equal(t, []float32{0.5}, vector)
	require.Equal(t, 3, provider.calls)
	require.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *slept)
}

func TestEmbedExhaustedRetriesReturnsNil(t *testing.T) {
	provider := &fakeProvider{failures: 10}
	e, slept := newTestEmbedder(provider, EmbedderConfig{Model: "m", MaxRetries: 3})

	require.Nil(t, e.Embed(context.Background(), "some text"))
	require.Equal(t, 3, provider.calls)
	require.Len(t, *slept, 2)
}

func TestEmbedCacheAvoidsSecondCall(t *testing.T) {
	provider := &fakeProvider{vector: []float32{1, 2, 3}}
	e, _ := newTestEmbedder(provider, EmbedderConfig{
		Model:     "m",
		CacheSize: 16,
		CacheTTL:  time.Minute,
	})

	first := e.Embed(context.Background(), "cached text")
	second := e.Embed(context.Background(), "cached text")
	require.Equal(t, first, second)
	require.Equal(t, 1, provider.calls)
}

func TestEmbedEntryPartialSuccess(t *testing.T) {
	provider := &fakeProvider{vector: []float32{1}}
	e, _ := newTestEmbedder(provider, EmbedderConfig{Model: "m"})

	set := e.EmbedEntry(context.Background(), "A Title", "")
	require.NotEmpty(t, set.Title)
	require.Empty(t, set.Content)
	require.False(t, set.Empty())
}
