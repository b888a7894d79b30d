package channels

import (
	"context"
	"sort"

	"crucible/pkg/config"
	"crucible/pkg/llm"

	jsoniter "github.com/json-iterator/go"
)

// Channel is a front-end that feeds user messages to the orchestrator and
// shows the answers.
type Channel interface {
	ID() string
	// Start begins serving and returns without blocking.
	Start(ctx context.Context) error
	Stop() error
}

// Chatter answers one user message on a session. *agent.Orchestrator
// implements it.
type Chatter interface {
	Chat(ctx context.Context, session *llm.ChatHistory, userText string) (string, error)
}

// Answerer is implemented by Chatters that also report the tool activity
// behind an answer, including a fallback that was never stored.
type Answerer interface {
	Answer(ctx context.Context, session *llm.ChatHistory, userText string) (llm.Answer, error)
}

// Ask runs one message through chat, using Answer when chat supports it. For
// a plain Chatter the activity is read back from the stored assistant turn.
func Ask(ctx context.Context, chat Chatter, session *llm.ChatHistory, userText string) (llm.Answer, error) {
	if a, ok := chat.(Answerer); ok {
		return a.Answer(ctx, session, userText)
	}
	text, err := chat.Chat(ctx, session, userText)
	if err != nil {
		return llm.Answer{}, err
	}
	answer := llm.Answer{Text: text}
	msgs := session.GetMessages()
	if n := len(msgs); n > 0 && msgs[n-1].Role == llm.RoleAssistant && msgs[n-1].Content == text {
		answer.Activity = msgs[n-1].Activity
	}
	return answer, nil
}

// Deps are the shared resources handed to every channel factory.
type Deps struct {
	Chat     Chatter
	Sessions *llm.SessionManager
	System   *config.SystemConfig
	// Shutdown asks the process to exit (the terminal's "exit" command).
	Shutdown func()
}

// ChannelFactory defines the abstract interface for front-end creators.
// New front-ends plug in without touching main.
type ChannelFactory interface {
	// Create instantiates a concrete Channel using the provided
	// configuration and shared resources.
	Create(rawConfig jsoniter.RawMessage, deps Deps) (Channel, error)
}

// channelRegistry maps a channel name (e.g., "web") to its factory.
var channelRegistry = make(map[string]ChannelFactory)

// RegisterChannel adds a new ChannelFactory to the registry.
// This is typically called during the package's init() phase.
func RegisterChannel(name string, factory ChannelFactory) {
	channelRegistry[name] = factory
}

// GetChannelFactory retrieves a registered ChannelFactory by name.
func GetChannelFactory(name string) (ChannelFactory, bool) {
	f, ok := channelRegistry[name]
	return f, ok
}

// RegisteredChannels lists the registered channel names in order.
func RegisteredChannels() []string {
	names := make([]string, 0, len(channelRegistry))
	for name := range channelRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
