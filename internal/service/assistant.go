package service

import (
	"context"
	"fmt"
	"strings"

	"docqa/internal/chat"
	"docqa/internal/domain"
	"docqa/internal/logger"
)

// AssistantConfig holds the retrieval and prompt settings of the query loop.
type AssistantConfig struct {
	SystemPrompt string
	TopK         int
	HistoryTurns int
	Chat         chat.Options
}

// Assistant answers questions about the indexed documents. Each call to
// Turn is one question; the conversation is passed in and returned so the
// caller owns the state.
type Assistant struct {
	cfg       AssistantConfig
	embedder  domain.Embedder
	index     domain.SearchIndex
	completer chat.Completer
	log       *logger.Logger
}

func NewAssistant(cfg AssistantConfig, embedder domain.Embedder, index domain.SearchIndex, completer chat.Completer, log *logger.Logger) *Assistant {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Assistant{
		cfg:       cfg,
		embedder:  embedder,
		index:     index,
		completer: completer,
		log:       log.With("component", "Assistant"),
	}
}

// Turn answers one utterance. On success the returned conversation has the
// question and answer appended. When search or completion fails the reply
// describes the failure, the conversation comes back unchanged and the
// error is returned for logging.
func (a *Assistant) Turn(ctx context.Context, conv domain.Conversation, utterance string) (domain.Conversation, string, error) {
	question := strings.TrimSpace(utterance)
	if question == "" {
		return conv, "", domain.InvalidArgument("empty question")
	}

	query := domain.HybridQuery{Text: question, TopK: a.cfg.TopK}
	if vec, err := a.embedder.Embed(ctx, question); err != nil {
		a.log.Warn("query embedding failed; using keyword search only", "error", err)
	} else {
		query.Vector = vec
	}

	results, err := a.index.Search(ctx, query)
	if err != nil {
		a.log.Error("search failed", "error", err)
		return conv, fmt.Sprintf("Search failed: %v", err), err
	}
	a.log.Debug("search done", "hits", len(results))

	history := chat.RecentHistory(conv.Messages, a.cfg.HistoryTurns)
	msgs := chat.BuildPrompt(a.cfg.SystemPrompt, history, results, question)
	reply, err := a.completer.Complete(ctx, msgs, a.cfg.Chat)
	if err != nil {
		a.log.Error("chat completion failed", "error", err)
		return conv, fmt.Sprintf("The assistant could not answer: %v", err), err
	}

	next := conv.Append(
		domain.Message{Role: domain.RoleUser, Content: question},
		domain.Message{Role: domain.RoleAssistant, Content: reply},
	)
	return next, reply, nil
}

var exitCommands = map[string]struct{}{
	"exit":  {},
	"quit":  {},
	"q":     {},
	"/quit": {},
	"/q":    {},
}

// IsExitCommand reports whether s asks to leave the query loop.
func IsExitCommand(s string) bool {
	_, ok := exitCommands[strings.ToLower(strings.TrimSpace(s))]
	return ok
}
