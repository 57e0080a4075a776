package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmclient "quill/internal/llmClient"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestLimiterBurstThenRefill(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	l := NewLimiter(2, 3)
	l.now = clk.now

	for i := 0; i < 3; i++ {
		assert.Zero(t, l.reserve(), "burst token %d", i)
	}
	assert.Equal(t, 500*time.Millisecond, l.reserve())

	// 1.5s refills three tokens, one of which covers the debt.
	clk.t = clk.t.Add(1500 * time.Millisecond)
	assert.Zero(t, l.reserve())
	assert.Zero(t, l.reserve())
	assert.Equal(t, 500*time.Millisecond, l.reserve())
}

func TestLimiterCancelReturnsToken(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	l := NewLimiter(1, 1)
	l.now = clk.now
	require.Zero(t, l.reserve())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)

	// Without the refund this would owe a second token.
	clk.t = clk.t.Add(time.Second)
	assert.Zero(t, l.reserve())
}

func TestNilLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(0, 5))
	var l *Limiter
	assert.NoError(t, l.Wait(context.Background()))
}

func TestSharedRateLimitSpansClients(t *testing.T) {
	l := NewLimiter(0.001, 1)
	a := Wrap(NewFakeClient(FakeReply{Text: "a"}), SharedRateLimit(l))
	b := Wrap(NewFakeClient(FakeReply{Text: "b"}), SharedRateLimit(l))

	_, err := a.Chat(context.Background(), llmclient.Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = b.Chat(ctx, llmclient.Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
