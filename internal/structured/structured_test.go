package structured

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/extract"
	"quill/internal/llm"
	llmclient "quill/internal/llmClient"
	"quill/internal/locale"
	"quill/internal/schema"
)

var rating = schema.MustNew("rating", "",
	schema.Field{Name: "label", Kind: schema.Choice, Choices: []string{"low", "high"}},
	schema.Field{Name: "note", Kind: schema.Text},
	schema.Field{Name: "score", Kind: schema.Number},
)

func newController(t *testing.T, fake *llm.FakeClient) *Controller {
	t.Helper()
	res := llm.NewResolver(llm.ResolverOptions{
		Credentials: llm.StaticCredentials{Keys: map[llmclient.Provider]string{llmclient.OpenAI: "k"}},
		Connector:   llm.FakeConnector(func(llmclient.Endpoint) llmclient.ChatClient { return fake }),
	})
	return New(res, llm.NewInvoker(time.Second), nil)
}

var req = Request{Model: "gpt-4o", Provider: "OpenAI", Message: "rate this", Locale: locale.English}

func TestTransientFailuresThenSuccess(t *testing.T) {
	for n := 0; n <= 3; n++ {
		replies := make([]llm.FakeReply, 0, n+1)
		for i := 0; i < n; i++ {
			if i%2 == 0 {
				replies = append(replies, llm.FakeReply{Err: errors.New("503")})
			} else {
				replies = append(replies, llm.FakeReply{Text: "not json at all"})
			}
		}
		replies = append(replies, llm.FakeReply{Text: "```json\n{\"label\":\"high\",\"note\":\"fine\",\"score\":88}\n```"})
		fake := llm.NewFakeClient(replies...)

		res, err := newController(t, fake).RunStructured(context.Background(), req, rating, n+1)
		require.NoError(t, err)
		assert.False(t, res.Fallback, "n=%d", n)
		assert.Equal(t, "high", res.Value["label"])
		assert.Equal(t, n+1, res.Attempts)
		assert.Equal(t, extract.TaggedBlock, res.Strategy)
		assert.Equal(t, n+1, fake.Calls())
	}
}

func TestAlwaysFailingBackendMakesExactlyRAttempts(t *testing.T) {
	for _, r := range []int{1, 2, 5} {
		fake := llm.NewFakeClient(llm.FakeReply{Err: errors.New("connection refused")})
		res, err := newController(t, fake).RunStructured(context.Background(), req, rating, r)
		require.NoError(t, err)
		assert.Equal(t, r, fake.Calls())
		assert.Equal(t, r, res.Attempts)
		assert.True(t, res.Fallback)
		assert.Equal(t, rating.Synthesize(locale.English), res.Value)
		require.NoError(t, rating.Validate(res.Value))

		var be *llmclient.BackendError
		assert.ErrorAs(t, res.LastErr, &be)
	}
}

func TestUnparseableRepliesFallBack(t *testing.T) {
	fake := llm.NewFakeClient(llm.FakeReply{Text: "I cannot answer that."})
	res, err := newController(t, fake).RunStructured(context.Background(), req, rating, 2)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	var failure *extract.ExtractionFailure
	assert.ErrorAs(t, res.LastErr, &failure)
	assert.Equal(t, "Analysis unavailable", res.Value["note"])
	assert.Equal(t, "low", res.Value["label"])
}

func TestZeroRetriesUsesDefault(t *testing.T) {
	fake := llm.NewFakeClient(llm.FakeReply{Err: errors.New("down")})
	res, err := newController(t, fake).RunStructured(context.Background(), req, rating, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRetries, fake.Calls())
	assert.True(t, res.Fallback)
}

func TestResolutionErrorsSurface(t *testing.T) {
	fake := llm.NewFakeClient()
	c := newController(t, fake)

	_, err := c.RunStructured(context.Background(), Request{Model: "x", Provider: "Nope"}, rating, 3)
	var up *llmclient.UnknownProviderError
	require.ErrorAs(t, err, &up)

	_, err = c.RunStructured(context.Background(), Request{Model: "claude-3-5-haiku-latest", Provider: "Anthropic"}, rating, 3)
	var ce *llmclient.CredentialError
	require.ErrorAs(t, err, &ce)
	assert.Zero(t, fake.Calls())
}

func TestStructuredRequestShape(t *testing.T) {
	fake := llm.NewFakeClient(llm.FakeReply{Text: `{"label":"low","note":"n","score":1}`})
	r := req
	r.System = "You are strict."
	r.History = []llmclient.Message{{Role: llmclient.RoleUser, Content: "earlier"}, {Role: llmclient.RoleAssistant, Content: "ok"}}
	_, err := newController(t, fake).RunStructured(context.Background(), r, rating, 1)
	require.NoError(t, err)

	sent := fake.Requests()[0]
	assert.True(t, sent.JSONMode)
	require.Len(t, sent.Messages, 4)
	assert.Equal(t, llmclient.RoleSystem, sent.Messages[0].Role)
	assert.True(t, strings.HasPrefix(sent.Messages[0].Content, "You are strict."))
	assert.Contains(t, sent.Messages[0].Content, `"label"`)
	assert.Equal(t, "rate this", sent.Messages[3].Content)
}

func TestCancelledContextStopsEarly(t *testing.T) {
	fake := llm.NewFakeClient(llm.FakeReply{Err: errors.New("down")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := newController(t, fake).RunStructured(ctx, req, rating, 5)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Zero(t, fake.Calls())
	assert.ErrorIs(t, res.LastErr, context.Canceled)
}

func TestLaterAttemptsSkipCache(t *testing.T) {
	cache := llm.NewMemoryCache(8, time.Minute)
	fake := llm.NewFakeClient(
		llm.FakeReply{Text: "garbage"},
		llm.FakeReply{Text: `{"label":"high","note":"n","score":2}`},
	)
	res := llm.NewResolver(llm.ResolverOptions{
		Credentials: llm.StaticCredentials{Keys: map[llmclient.Provider]string{llmclient.OpenAI: "k"}},
		Connector:   llm.FakeConnector(func(llmclient.Endpoint) llmclient.ChatClient { return fake }),
		Middlewares: []llm.Middleware{llm.WithCache(cache, nil)},
	})
	c := New(res, llm.NewInvoker(time.Second), nil)

	out, err := c.RunStructured(context.Background(), req, rating, 3)
	require.NoError(t, err)
	assert.False(t, out.Fallback)
	assert.Equal(t, 2, fake.Calls())
}

func TestRunText(t *testing.T) {
	fake := llm.NewFakeClient(llm.FakeReply{Err: errors.New("timeout")}, llm.FakeReply{Text: "  "}, llm.FakeReply{Text: "hello"})
	c := newController(t, fake)
	res, err := RunText(context.Background(), c, req, 3, NonEmpty, func(error) string { return "fallback" })
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Equal(t, "hello", res.Value)
	assert.Equal(t, 3, res.Attempts)
	assert.False(t, fake.Requests()[0].JSONMode)
}

func TestRunTextFallback(t *testing.T) {
	fake := llm.NewFakeClient(llm.FakeReply{Err: errors.New("timeout")})
	c := newController(t, fake)
	res, err := RunText(context.Background(), c, req, 2, NonEmpty, func(err error) string { return "fallback: " + err.Error() })
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, 2, fake.Calls())
	assert.True(t, strings.HasPrefix(res.Value, "fallback: "))
}
