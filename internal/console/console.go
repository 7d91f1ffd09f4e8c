// Package console is a line-oriented query loop for terminals without TUI support.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/service"
)

// Turner answers one question given the conversation so far.
type Turner interface {
	Turn(ctx context.Context, conv domain.Conversation, utterance string) (domain.Conversation, string, error)
}

// REPL reads questions from in and writes answers to out.
type REPL struct {
	turner Turner
	in     io.Reader
	out    io.Writer
	log    *logger.Logger
	conv   domain.Conversation
}

func New(turner Turner, in io.Reader, out io.Writer, log *logger.Logger) *REPL {
	if log == nil {
		log = logger.Nop()
	}
	return &REPL{turner: turner, in: in, out: out, log: log.With("component", "Console")}
}

type commandHandler func(r *REPL) bool

var commands = map[string]commandHandler{
	"/help":    cmdHelp,
	"/h":       cmdHelp,
	"/reset":   cmdReset,
	"/history": cmdHistory,
}

// Run loops until an exit command, end of input or ctx cancellation.
// Service failures are printed and the loop continues.
func (r *REPL) Run(ctx context.Context) error {
	r.printHelp()
	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if !r.process(ctx, strings.TrimSpace(scanner.Text())) {
			break
		}
	}
	fmt.Fprintln(r.out, "Goodbye!")
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

// Conversation returns the current conversation state.
func (r *REPL) Conversation() domain.Conversation { return r.conv }

func (r *REPL) process(ctx context.Context, input string) bool {
	if input == "" {
		return true
	}
	if service.IsExitCommand(input) {
		return false
	}
	if strings.HasPrefix(input, "/") {
		cmd := strings.ToLower(strings.Fields(input)[0])
		handler, ok := commands[cmd]
		if !ok {
			fmt.Fprintf(r.out, "Unknown command: %s (type /help for commands)\n", cmd)
			return true
		}
		return handler(r)
	}

	next, reply, err := r.turner.Turn(ctx, r.conv, input)
	if err != nil {
		r.log.Warn("turn failed", "error", err)
		fmt.Fprintf(r.out, "Error: %s\n", reply)
		return true
	}
	r.conv = next
	fmt.Fprintln(r.out, reply)
	return true
}

func cmdHelp(r *REPL) bool {
	r.printHelp()
	return true
}

func cmdReset(r *REPL) bool {
	r.conv = domain.Conversation{}
	fmt.Fprintln(r.out, "Conversation cleared.")
	return true
}

func cmdHistory(r *REPL) bool {
	if len(r.conv.Messages) == 0 {
		fmt.Fprintln(r.out, "No history.")
		return true
	}
	for _, m := range r.conv.Messages {
		fmt.Fprintf(r.out, "%s: %s\n", m.Role, m.Content)
	}
	return true
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, "Commands:")
	fmt.Fprintln(r.out, "  <question>   Ask about the documents")
	fmt.Fprintln(r.out, "  /history     Show the conversation")
	fmt.Fprintln(r.out, "  /reset       Start a new conversation")
	fmt.Fprintln(r.out, "  /help        Show this help")
	fmt.Fprintln(r.out, "  exit, /quit  Leave")
}
