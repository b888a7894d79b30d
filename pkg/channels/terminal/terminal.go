// Package terminal is the interactive command-line front-end.
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"crucible/pkg/channels"
	"crucible/pkg/llm"
	"crucible/pkg/monitor"
)

const (
	prompt  = "You: "
	speaker = "CRUCIBLE"
)

// Terminal reads user messages line by line and prints the answers. It owns
// one session for the lifetime of the process.
type Terminal struct {
	in      io.Reader
	out     io.Writer
	chat    channels.Chatter
	session *llm.ChatHistory
	monitor monitor.Monitor
	onExit  func()

	mu   sync.Mutex
	done chan struct{}
}

// New creates a terminal front-end. A nil sessions manager gives the
// terminal a private session.
func New(in io.Reader, out io.Writer, deps channels.Deps) *Terminal {
	session := llm.NewChatHistory()
	if deps.Sessions != nil {
		session = deps.Sessions.Create()
	}
	return &Terminal{
		in:      in,
		out:     out,
		chat:    deps.Chat,
		session: session,
		monitor: monitor.NewCLIMonitorTo(out),
		onExit:  deps.Shutdown,
		done:    make(chan struct{}),
	}
}

func (t *Terminal) ID() string {
	return "terminal"
}

// Session returns the terminal's conversation.
func (t *Terminal) Session() *llm.ChatHistory {
	return t.session
}

// Start runs the read loop in the background. When the loop ends (exit
// command or end of input) the shutdown hook is called.
func (t *Terminal) Start(ctx context.Context) error {
	go func() {
		if err := t.Run(ctx); err != nil {
			slog.Error("Terminal stopped", "error", err)
		}
		if t.onExit != nil {
			t.onExit()
		}
	}()
	return nil
}

// Stop implements channels.Channel. A blocked read on stdin cannot be
// interrupted; the process exit ends it.
func (t *Terminal) Stop() error {
	return nil
}

// Done is closed when Run returns.
func (t *Terminal) Done() <-chan struct{} {
	return t.done
}

// Run blocks until the user exits, the input ends or ctx is cancelled.
func (t *Terminal) Run(ctx context.Context) error {
	defer t.closeDone()
	ctx = monitor.NewContext(ctx, t.monitor)

	fmt.Fprintln(t.out, "CRUCIBLE - Material Identification Demo")
	fmt.Fprintln(t.out, "Type 'help' for examples, 'exit' to quit.")
	fmt.Fprintln(t.out)

	scanner := bufio.NewScanner(t.in)
	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Fprint(t.out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(t.out)
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "exit", "quit":
			fmt.Fprintln(t.out, "Goodbye.")
			return nil
		case "clear":
			t.session.Clear()
			fmt.Fprintln(t.out, "Conversation cleared.")
			fmt.Fprintln(t.out)
			continue
		case "help":
			t.printHelp()
			continue
		}

		answer, err := t.chat.Chat(ctx, t.session, input)
		if err != nil {
			fmt.Fprintf(t.out, "Error: %v\n\n", err)
			continue
		}
		fmt.Fprintf(t.out, "%s: %s\n\n", speaker, answer)
	}
}

func (t *Terminal) printHelp() {
	fmt.Fprintln(t.out)
	fmt.Fprintln(t.out, "Example queries:")
	for _, q := range channels.ExampleQueries {
		fmt.Fprintf(t.out, "  - %q\n", q)
	}
	fmt.Fprintln(t.out)
	fmt.Fprintln(t.out, "Commands:")
	fmt.Fprintln(t.out, "  exit/quit  - Exit CRUCIBLE")
	fmt.Fprintln(t.out, "  clear      - Clear conversation history")
	fmt.Fprintln(t.out, "  help       - Show this message")
	fmt.Fprintln(t.out)
}

func (t *Terminal) closeDone() {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.done:
	default:
		close(t.done)
	}
}
