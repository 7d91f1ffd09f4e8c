package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

type echoTurner struct {
	fail map[string]bool
	seen []int
}

func (e *echoTurner) Turn(_ context.Context, conv domain.Conversation, utterance string) (domain.Conversation, string, error) {
	e.seen = append(e.seen, len(conv.Messages))
	if e.fail[utterance] {
		return conv, "service unavailable", errors.New("down")
	}
	reply := "echo " + utterance
	return conv.Append(
		domain.Message{Role: domain.RoleUser, Content: utterance},
		domain.Message{Role: domain.RoleAssistant, Content: reply},
	), reply, nil
}

func TestRunAnswersUntilExit(t *testing.T) {
	turner := &echoTurner{fail: map[string]bool{"broken": true}}
	in := strings.NewReader("first\n\nbroken\nsecond\n/history\nexit\nnever\n")
	var out bytes.Buffer
	r := New(turner, in, &out, nil)

	require.NoError(t, r.Run(context.Background()))
	text := out.String()
	assert.Contains(t, text, "echo first\n")
	assert.Contains(t, text, "Error: service unavailable\n")
	assert.Contains(t, text, "echo second\n")
	assert.Contains(t, text, "user: second\nassistant: echo second\n")
	assert.NotContains(t, text, "never")
	assert.True(t, strings.HasSuffix(text, "Goodbye!\n"))
	assert.Equal(t, []int{0, 2, 2}, turner.seen)
	assert.Len(t, r.Conversation().Messages, 4)
}

func TestRunStopsAtEOFAndHandlesCommands(t *testing.T) {
	turner := &echoTurner{}
	var out bytes.Buffer
	r := New(turner, strings.NewReader("q1\n/reset\n/bogus\n/history"), &out, nil)

	require.NoError(t, r.Run(context.Background()))
	assert.Contains(t, out.String(), "Conversation cleared.")
	assert.Contains(t, out.String(), "Unknown command: /bogus")
	assert.Contains(t, out.String(), "No history.")
	assert.Empty(t, r.Conversation().Messages)
}
