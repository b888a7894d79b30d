package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []string
}

type fakeChannel struct {
	id       string
	startErr error
	rec      *recorder
}

func (f *fakeChannel) ID() string { return f.id }

func (f *fakeChannel) Start(ctx context.Context) error {
	f.rec.events = append(f.rec.events, "start "+f.id)
	return f.startErr
}

func (f *fakeChannel) Stop() error {
	f.rec.events = append(f.rec.events, "stop "+f.id)
	return nil
}

func TestStartStopOrder(t *testing.T) {
	rec := &recorder{}
	g := NewGatewayManager()
	g.Register(&fakeChannel{id: "web", rec: rec})
	g.Register(&fakeChannel{id: "terminal", rec: rec})

	require.Equal(t, []string{"terminal", "web"}, g.IDs())
	require.NoError(t, g.StartAll(context.Background()))
	g.StopAll()
	g.StopAll()

	require.Equal(t, []string{"start terminal", "start web", "stop web", "stop terminal"}, rec.events)

	c, ok := g.GetChannel("web")
	require.True(t, ok)
	require.Equal(t, "web", c.ID())
}

func TestStartFailureRollsBack(t *testing.T) {
	rec := &recorder{}
	g := NewGatewayManager()
	g.Register(&fakeChannel{id: "a", rec: rec})
	g.Register(&fakeChannel{id: "b", rec: rec, startErr: errors.New("port in use")})

	err := g.StartAll(context.Background())
	require.ErrorContains(t, err, "port in use")
	require.Equal(t, []string{"start a", "start b", "stop a"}, rec.events)
}
