package chat

import (
	"fmt"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/labels"
)

const noContext = "No matching documents were found."

// FormatContext renders search hits as a numbered block of documents.
// Fields holding the Null sentinel are left out.
func FormatContext(results []domain.SearchResult) string {
	if len(results) == 0 {
		return noContext
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d]", i+1)
		wrote := false
		if r.Document.Fields != nil {
			for _, k := range r.Document.Fields.Keys() {
				v, _ := r.Document.Fields.Get(k)
				if v == "" || v == labels.NullValue {
					continue
				}
				fmt.Fprintf(&b, "\n%s: %s", k, v)
				wrote = true
			}
		}
		if !wrote {
			fmt.Fprintf(&b, "\n%s", r.Document.Content)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildPrompt returns the message sequence for one question: the system
// prompt, prior exchanges, and a user message carrying the retrieved context.
func BuildPrompt(system string, history []domain.Message, results []domain.SearchResult, question string) []domain.Message {
	msgs := make([]domain.Message, 0, len(history)+2)
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: system})
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, domain.Message{
		Role:    domain.RoleUser,
		Content: "Context:\n" + FormatContext(results) + "\n\nQuestion: " + strings.TrimSpace(question),
	})
	return msgs
}

// RecentHistory returns the last turns question/answer exchanges of msgs.
func RecentHistory(msgs []domain.Message, turns int) []domain.Message {
	if turns <= 0 {
		return nil
	}
	n := turns * 2
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
