package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/localchat/plugin/ai"
	aicontext "github.com/hrygo/localchat/plugin/ai/context"
	"github.com/hrygo/localchat/plugin/ai/session"
	"github.com/hrygo/localchat/plugin/ai/tokenizer"
	chaterrors "github.com/hrygo/localchat/server/internal/errors"
	"github.com/hrygo/localchat/server/internal/observability"
)

func newTestService(t *testing.T, engine ai.Engine, historyLimit, maxConcurrent int) *Service {
	t.Helper()
	builder := aicontext.NewService(tokenizer.Estimator{}, aicontext.Config{
		Format:    aicontext.DefaultPromptFormat(),
		MaxTokens: 0,
	})
	history := session.NewHistory(session.NewMemoryStore(), historyLimit)
	return NewService(engine, builder, history, nil, Config{
		Format:        aicontext.DefaultPromptFormat(),
		MaxConcurrent: maxConcurrent,
	})
}

func testRC(op string) *observability.RequestContext {
	return observability.NewRequestContext(nil, op, "test-session")
}

func TestService_Chat(t *testing.T) {
	ctx := context.Background()
	engine := ai.NewMockEngine("Assistant: Bonjour, **ami** !")
	svc := newTestService(t, engine, 5, 1)

	reply, err := svc.Chat(ctx, testRC(OperationChat), "s1", "  Salut  ")
	require.NoError(t, err)
	assert.Equal(t, "Bonjour, **ami** !", reply.Text)
	assert.Contains(t, reply.HTML, "<strong>ami</strong>")

	requests := engine.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "Human: Salut\nAssistant:", requests[0].Prompt)
	assert.Positive(t, requests[0].PromptTokens)

	turns, err := svc.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "Salut", turns[0].User)
	assert.Equal(t, "Bonjour, **ami** !", turns[0].Bot)

	// The next prompt carries the recorded turn.
	_, err = svc.Chat(ctx, testRC(OperationChat), "s1", "Ça va ?")
	require.NoError(t, err)
	requests = engine.Requests()
	assert.Equal(t, "Human: Salut\nAssistant: Bonjour, **ami** !\nHuman: Ça va ?\nAssistant:", requests[1].Prompt)

	// Sessions are independent.
	_, err = svc.Chat(ctx, testRC(OperationChat), "s2", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Human: Hello\nAssistant:", engine.Requests()[2].Prompt)
}

func TestService_Chat_EmptyMessage(t *testing.T) {
	engine := ai.NewMockEngine("x")
	svc := newTestService(t, engine, 5, 1)

	_, err := svc.Chat(context.Background(), testRC(OperationChat), "s1", " \n\t ")
	require.Error(t, err)
	assert.True(t, chaterrors.IsCode(err, chaterrors.ErrCodeInvalidArgument))
	assert.Empty(t, engine.Requests())
}

func TestService_Chat_FailureRecordsNothing(t *testing.T) {
	ctx := context.Background()
	engine := ai.NewMockEngine("ok")
	svc := newTestService(t, engine, 5, 1)

	_, err := svc.Chat(ctx, testRC(OperationChat), "s1", "first")
	require.NoError(t, err)

	engine.Err = errors.New("model crashed")
	_, err = svc.Chat(ctx, testRC(OperationChat), "s1", "second")
	require.Error(t, err)
	assert.True(t, chaterrors.IsCode(err, chaterrors.ErrCodeGenerationFailed))

	turns, err := svc.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "first", turns[0].User)

	snap := svc.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.RequestTotal)
	assert.Equal(t, int64(1), snap.RequestFailed)
}

func TestService_Chat_Timeout(t *testing.T) {
	engine := ai.NewMockEngine("")
	engine.GenerateFunc = func(ctx context.Context, _ *ai.GenerateRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	svc := newTestService(t, engine, 5, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.Chat(ctx, testRC(OperationChat), "s1", "hello")
	require.Error(t, err)
	assert.True(t, chaterrors.IsCode(err, chaterrors.ErrCodeTimeout))
}

func TestService_Chat_HistoryDisabled(t *testing.T) {
	ctx := context.Background()
	engine := ai.NewMockEngine("reply")
	svc := newTestService(t, engine, 0, 1)

	for _, msg := range []string{"one", "two"} {
		_, err := svc.Chat(ctx, testRC(OperationChat), "s1", msg)
		require.NoError(t, err)
	}
	assert.Equal(t, "Human: two\nAssistant:", engine.Requests()[1].Prompt)

	turns, err := svc.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestService_Reset(t *testing.T) {
	ctx := context.Background()
	engine := ai.NewMockEngine("reply")
	svc := newTestService(t, engine, 5, 1)

	_, err := svc.Chat(ctx, testRC(OperationChat), "s1", "hello")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, svc.Reset(ctx, testRC(OperationReset), "s1"))
	}

	turns, err := svc.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestService_SerializesSession(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	engine := ai.NewMockEngine("")
	engine.GenerateFunc = func(_ context.Context, req *ai.GenerateRequest) (string, error) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return req.Prompt + " ok", nil
	}
	// Plenty of generation slots: only the session lock can serialize.
	svc := newTestService(t, engine, 10, 8)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Chat(context.Background(), testRC(OperationChat), "same", "hi")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
	turns, err := svc.History(context.Background(), "same")
	require.NoError(t, err)
	assert.Len(t, turns, 5, "no turn lost to a concurrent save")
	assert.Zero(t, svc.locks.size())
}

func TestService_BoundsGenerations(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	engine := ai.NewMockEngine("")
	engine.GenerateFunc = func(_ context.Context, req *ai.GenerateRequest) (string, error) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return req.Prompt + " ok", nil
	}
	svc := newTestService(t, engine, 5, 2)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Chat(context.Background(), testRC(OperationChat), string(rune('a'+i)), "hi")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, maxInFlight.Load(), int32(2))
}
