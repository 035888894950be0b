// Package interaction runs one budgeted round of a conversation:
// user message in, assistant reply out, every byte accounted for.
package interaction

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/elusaegis/ai-passport/internal/budget"
	"github.com/elusaegis/ai-passport/internal/chat"
)

// InputSource produces the next user message. The current budget is
// passed so interactive sources can display remaining capacity.
// Returning (nil, nil) ends the session.
type InputSource interface {
	NextMessage(b *budget.Budget, modelID string, history []chat.Message) (*chat.Message, error)
}

// Holder guards an input source with a mutex so tests can inject
// messages across tasks. The lock is held only while one message is
// being produced.
type Holder struct {
	mu  sync.Mutex
	src InputSource
}

// NewHolder wraps an input source.
func NewHolder(src InputSource) *Holder {
	return &Holder{src: src}
}

// Next produces the next user message under the lock.
func (h *Holder) Next(b *budget.Budget, modelID string, history []chat.Message) (*chat.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.src.NextMessage(b, modelID, history)
}

// Replace swaps the underlying source (used by tests).
func (h *Holder) Replace(src InputSource) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.src = src
}

// Budget readouts under this are effectively unusable; the prompt
// flags them since the overhead portion is an estimate.
const lowBudgetThreshold = 100

// StdinSource reads messages interactively from standard input.
// "exit" or an empty line ends the session.
type StdinSource struct {
	in  io.Reader
	out io.Writer

	reader  *bufio.Reader
	encoder *tiktoken.Tiktoken
}

// NewStdinSource creates an interactive source on stdin/stderr.
func NewStdinSource() *StdinSource {
	return &StdinSource{in: os.Stdin, out: os.Stderr}
}

// NextMessage implements InputSource.
func (s *StdinSource) NextMessage(b *budget.Budget, modelID string, history []chat.Message) (*chat.Message, error) {
	if s.reader == nil {
		s.reader = bufio.NewReader(s.in)
	}

	if last := lastAssistant(history); last != "" {
		fmt.Fprintf(s.out, "\nAssistant (%s):\n%s\n", modelID, last)
	}

	fmt.Fprintf(s.out, "\nYour message%s (type 'exit' to end):\n> ", s.budgetSuffix(b, history))

	line, err := s.reader.ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("reading user input: %w", err)
	}

	line = strings.TrimSpace(line)
	if line == "" || strings.EqualFold(line, "exit") {
		return nil, nil
	}

	msg := chat.User(line)
	return &msg, nil
}

// budgetSuffix renders "[↑ 1.2KB | ↓ 9.8KB | ≈312 tok]" for limited
// budgets and warns when either direction is effectively exhausted.
func (s *StdinSource) budgetSuffix(b *budget.Budget, history []chat.Message) string {
	send, sendOK := b.AvailableInputBytes(history)
	recv, recvOK := b.AvailableRecvBytes()
	if !sendOK || !recvOK {
		return ""
	}

	suffix := fmt.Sprintf(" [↑ %s | ↓ %s", formatBytes(send), formatBytes(recv))
	if tokens, ok := s.historyTokens(history); ok {
		suffix += fmt.Sprintf(" | ≈%d tok", tokens)
	}
	suffix += "]"

	if send < lowBudgetThreshold || recv < lowBudgetThreshold {
		suffix += "\n! budget exhausted - type 'exit' to end the session"
	}
	return suffix
}

// historyTokens counts the tokens the history re-sends each round.
func (s *StdinSource) historyTokens(history []chat.Message) (int, bool) {
	if len(history) == 0 {
		return 0, false
	}
	if s.encoder == nil {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Debug().Err(err).Msg("token encoder unavailable, skipping token readout")
			return 0, false
		}
		s.encoder = enc
	}

	total := 0
	for _, m := range history {
		total += len(s.encoder.Encode(m.Content, nil, nil))
	}
	return total, true
}

// Interactive reports whether stdin is a terminal.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func lastAssistant(history []chat.Message) string {
	if len(history) == 0 {
		return ""
	}
	last := history[len(history)-1]
	if last.Role != chat.RoleAssistant {
		return ""
	}
	return last.Content
}

func formatBytes(n int) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1fMB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.1fKB", float64(n)/1024)
	default:
		return fmt.Sprintf("%dB", n)
	}
}

// SliceSource feeds a fixed list of messages, for tests and automation.
type SliceSource struct {
	messages []string
	next     int
}

// NewSliceSource creates a source over the given messages.
func NewSliceSource(messages ...string) *SliceSource {
	return &SliceSource{messages: messages}
}

// NextMessage implements InputSource.
func (s *SliceSource) NextMessage(_ *budget.Budget, _ string, history []chat.Message) (*chat.Message, error) {
	if last := lastAssistant(history); last != "" {
		log.Debug().Str("reply", last).Msg("previous assistant message")
	}
	if s.next >= len(s.messages) {
		return nil, nil
	}
	msg := chat.User(s.messages[s.next])
	s.next++
	return &msg, nil
}

var (
	_ InputSource = (*StdinSource)(nil)
	_ InputSource = (*SliceSource)(nil)
)
