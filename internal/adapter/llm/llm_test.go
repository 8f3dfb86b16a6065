package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/config"
	"docrag/internal/domain"
	"docrag/internal/port"
)

const samplePrompt = "Answer the question.\n\nContext:\n[Page 2] The plant opened in 1998.\n\nQuestion: When did the plant open?\n\nAnswer:"

func collect(t *testing.T, s port.TokenStream) []string {
	t.Helper()
	var out []string
	for s.Next() {
		out = append(out, s.Text())
	}
	require.NoError(t, s.Err())
	require.NoError(t, s.Close())
	return out
}

func TestEchoGenerator_ReturnsContext(t *testing.T) {
	g := NewEchoGenerator()

	answer, err := g.Generate(context.Background(), samplePrompt, port.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "[Page 2] The plant opened in 1998.", answer)
}

func TestEchoGenerator_StreamMatchesGenerate(t *testing.T) {
	g := NewEchoGenerator()
	ctx := context.Background()

	answer, err := g.Generate(ctx, samplePrompt, port.GenerateOptions{})
	require.NoError(t, err)

	s, err := g.Stream(ctx, samplePrompt, port.GenerateOptions{})
	require.NoError(t, err)
	fragments := collect(t, s)

	assert.Greater(t, len(fragments), 1)
	assert.Equal(t, answer, strings.Join(fragments, ""))
	assert.False(t, s.Next(), "stream is single-pass")
}

func TestEchoGenerator_MaxTokensTruncates(t *testing.T) {
	g := NewEchoGenerator()

	answer, err := g.Generate(context.Background(), samplePrompt, port.GenerateOptions{MaxTokens: 3})
	require.NoError(t, err)
	assert.Equal(t, "[Page 2] The", answer)
}

func TestChanStream_DeliversInOrder(t *testing.T) {
	s := newChanStream(context.Background(), func(ctx context.Context, emit func(string) error) error {
		for _, f := range []string{"a", "", "b", "c"} {
			if err := emit(f); err != nil {
				return err
			}
		}
		return nil
	})

	assert.Equal(t, []string{"a", "b", "c"}, collect(t, s))
}

func TestChanStream_PropagatesProducerError(t *testing.T) {
	boom := errors.New("backend down")
	s := newChanStream(context.Background(), func(ctx context.Context, emit func(string) error) error {
		_ = emit("partial")
		return boom
	})

	require.True(t, s.Next())
	assert.Equal(t, "partial", s.Text())
	assert.False(t, s.Next())
	assert.ErrorIs(t, s.Err(), boom)
}

func TestChanStream_CloseStopsProducer(t *testing.T) {
	stopped := make(chan struct{})
	s := newChanStream(context.Background(), func(ctx context.Context, emit func(string) error) error {
		defer close(stopped)
		for {
			if err := emit("x"); err != nil {
				return err
			}
		}
	})

	require.True(t, s.Next())
	require.NoError(t, s.Close())

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not stop after Close")
	}
}

func TestTokenCounter_FallsBackForUnknownModel(t *testing.T) {
	tc, err := NewTokenCounter("llama3")
	if err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}
	assert.Equal(t, "cl100k_base", tc.Encoding())
	assert.Greater(t, tc.CountTokens("hello world"), 0)
}

func TestNew_ProviderSelection(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Generation.Provider = "echo"
	g, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "echo", g.ModelName())

	cfg.Generation.Provider = "openai"
	_, err = New(cfg)
	assert.ErrorIs(t, err, domain.ErrCloudModelsDisabled)

	cfg.Privacy.AllowCloudModels = true
	cfg.Generation.APIKeyEnv = "DOCRAG_TEST_NO_KEY"
	t.Setenv("DOCRAG_TEST_NO_KEY", "")
	_, err = New(cfg)
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)

	cfg.Generation.Provider = "bard"
	_, err = New(cfg)
	assert.ErrorIs(t, err, domain.ErrUnsupportedProvider)
}

func TestWithTimeout_CancelsSlowGeneration(t *testing.T) {
	g := WithTimeout(slowGenerator{}, 20*time.Millisecond)

	_, err := g.Generate(context.Background(), "p", port.GenerateOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type slowGenerator struct{}

func (slowGenerator) Generate(ctx context.Context, _ string, _ port.GenerateOptions) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (slowGenerator) Stream(ctx context.Context, _ string, _ port.GenerateOptions) (port.TokenStream, error) {
	return nil, errors.New("not streaming")
}

func (slowGenerator) ModelName() string { return "slow" }
