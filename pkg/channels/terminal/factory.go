package terminal

import (
	"os"

	"crucible/pkg/channels"

	jsoniter "github.com/json-iterator/go"
)

// TerminalFactory creates the stdin/stdout front-end.
type TerminalFactory struct{}

// Create implements channels.ChannelFactory.
func (f *TerminalFactory) Create(rawConfig jsoniter.RawMessage, deps channels.Deps) (channels.Channel, error) {
	if !channels.Enabled(rawConfig) {
		return nil, nil
	}
	return New(os.Stdin, os.Stdout, deps), nil
}

func init() {
	channels.RegisterChannel("terminal", &TerminalFactory{})
}
