package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicforum/constitution-platform/internal/apperror"
	"github.com/civicforum/constitution-platform/internal/assistant"
	"github.com/civicforum/constitution-platform/internal/constitution"
)

func newTestChat(t *testing.T, a assistant.Assistant) *ChatService {
	t.Helper()
	catalog, err := constitution.Load()
	require.NoError(t, err)
	return NewChatService(a, catalog, discardLogger())
}

func TestChatAsk(t *testing.T) {
	fake := &fakeAssistant{}
	svc := newTestChat(t, fake)

	reply, err := svc.Ask(context.Background(), "  What does the preamble say?  ")
	require.NoError(t, err)
	assert.Equal(t, "answer to: What does the preamble say?", reply.Answer)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	require.Len(t, req.Instructions, 2, "no article mentioned, only the persona and guide")
	assert.Contains(t, req.Instructions[0], "NiyamAI")
}

func TestChatAsk_AttachesMentionedArticle(t *testing.T) {
	fake := &fakeAssistant{}
	svc := newTestChat(t, fake)

	_, err := svc.Ask(context.Background(), "Explain article 21 in simple words")
	require.NoError(t, err)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	require.Len(t, req.Instructions, 3)
	assert.True(t, strings.HasPrefix(req.Instructions[2], "Relevant article content:\nArticle 21: "))
}

func TestChatAsk_Validation(t *testing.T) {
	svc := newTestChat(t, &fakeAssistant{})

	_, err := svc.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.Ask(context.Background(), strings.Repeat("a", MaxChatMessageLength+1))
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestChatAsk_Unavailable(t *testing.T) {
	t.Run("no assistant configured", func(t *testing.T) {
		svc := newTestChat(t, nil)
		_, err := svc.Ask(context.Background(), "hello")
		assert.ErrorIs(t, err, apperror.ErrUnavailable)
	})

	t.Run("all models exhausted", func(t *testing.T) {
		svc := newTestChat(t, &fakeAssistant{err: fmt.Errorf("%w: 429", assistant.ErrExhausted)})
		_, err := svc.Ask(context.Background(), "hello")
		assert.ErrorIs(t, err, apperror.ErrUnavailable)
	})

	t.Run("other failures pass through", func(t *testing.T) {
		boom := errors.New("boom")
		svc := newTestChat(t, &fakeAssistant{err: boom})
		_, err := svc.Ask(context.Background(), "hello")
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, apperror.ErrUnavailable)
	})
}
