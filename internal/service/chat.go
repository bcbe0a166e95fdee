package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/civicforum/constitution-platform/internal/apperror"
	"github.com/civicforum/constitution-platform/internal/assistant"
	"github.com/civicforum/constitution-platform/internal/constitution"
)

const MaxChatMessageLength = 2000

// persona and platformGuide are sent as system instructions on every turn.
const (
	persona = `You are "NiyamAI", the assistant of the Digital Constitution Platform.
Give accurate, clear and concise answers about the Indian Constitution
(articles, schedules, amendments), citizens' rights and duties, the structure
of government and civic affairs.`

	platformGuide = `Platform features:
- Trending: the most discussed posts of the last two days.
- Vote: polls created by Experts; everyone votes once per poll.
- Posts: opinions on constitutional articles that others agree or disagree with.
- Constitution: the text of the articles (Preamble, Article 14, Article 21, ...).
- My Activity: the signed-in user's own posts.
- Profile: account details, password change and sign out.`
)

// ChatService answers questions through the assistant, attaching the text of
// any constitution article the question mentions.
type ChatService struct {
	assistant assistant.Assistant
	catalog   *constitution.Catalog
	logger    *slog.Logger
}

// NewChatService creates a ChatService. a may be nil when no assistant is
// configured; Ask then reports the chat as unavailable.
func NewChatService(a assistant.Assistant, catalog *constitution.Catalog, logger *slog.Logger) *ChatService {
	return &ChatService{assistant: a, catalog: catalog, logger: logger}
}

// Ask sends message to the assistant.
func (s *ChatService) Ask(ctx context.Context, message string) (*assistant.Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperror.ValidationFailed("message", "message is required")
	}
	if utf8.RuneCountInString(message) > MaxChatMessageLength {
		return nil, apperror.ValidationFailed("message",
			fmt.Sprintf("message must be %d characters or less", MaxChatMessageLength))
	}
	if s.assistant == nil {
		return nil, apperror.Unavailable("the assistant is not configured")
	}

	req := assistant.Request{
		Instructions: []string{persona, platformGuide},
		Message:      message,
	}
	if s.catalog != nil {
		if article, ok := s.catalog.Mentioned(message); ok {
			req.Instructions = append(req.Instructions, fmt.Sprintf(
				"Relevant article content:\nArticle %s: %s\n%s", article.Number, article.Title, article.Content))
		}
	}

	reply, err := s.assistant.Ask(ctx, req)
	if err != nil {
		if errors.Is(err, assistant.ErrExhausted) {
			s.logger.Warn("assistant exhausted", slog.String("error", err.Error()))
			return nil, apperror.Unavailable("the assistant is busy, please try again shortly")
		}
		return nil, fmt.Errorf("asking assistant: %w", err)
	}
	return reply, nil
}
