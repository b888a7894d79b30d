package ollama

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crucible/pkg/config"
	"crucible/pkg/llm"

	"github.com/stretchr/testify/require"
)

var identifySchema = llm.ToolSchema{
	Name:        "identify_material",
	Description: "Identify a material.",
	Parameters: []llm.ParameterSpec{
		{Name: "peak_1", Type: llm.TypeNumber, Description: "First peak.", Required: true},
	},
}

func newTestClient(t *testing.T, body string, captured *map[string]any) *OllamaClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if captured != nil {
			require.NoError(t, json.Unmarshal(data, captured))
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	c, err := NewOllamaClient("llama3.1", srv.URL, 5*time.Second, nil)
	require.NoError(t, err)
	return c
}

func TestCompleteToolCall(t *testing.T) {
	var req map[string]any
	c := newTestClient(t, `{"model":"llama3.1","created_at":"2025-01-01T00:00:00Z","message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","function":{"name":"identify_material","arguments":{"peak_1":465}}}]},"done":true,"done_reason":"stop","prompt_eval_count":3,"eval_count":2}`, &req)

	reply, err := c.Complete(context.Background(), []llm.Message{llm.NewUserMessage("465?")}, []llm.ToolSchema{identifySchema}, llm.ToolChoiceAuto)
	require.NoError(t, err)

	tc, ok := reply.(llm.ToolCallReply)
	require.True(t, ok)
	require.Len(t, tc.Calls, 1)
	require.Equal(t, "call_1", tc.Calls[0].ID)
	require.Equal(t, "identify_material", tc.Calls[0].Name)
	require.JSONEq(t, `{"peak_1":465}`, tc.Calls[0].Arguments)

	require.Equal(t, false, req["stream"])
	tools := req["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	require.Equal(t, "identify_material", fn["name"])
}

func TestCompleteText(t *testing.T) {
	var req map[string]any
	c := newTestClient(t, `{"model":"llama3.1","created_at":"2025-01-01T00:00:00Z","message":{"role":"assistant","content":"Ceria."},"done":true,"done_reason":"stop"}`, &req)

	reply, err := c.Complete(context.Background(), []llm.Message{llm.NewUserMessage("hi")}, []llm.ToolSchema{identifySchema}, llm.ToolChoiceNone)
	require.NoError(t, err)
	require.Equal(t, llm.TextReply{Content: "Ceria."}, reply)
	require.Nil(t, req["tools"])
}

func TestCompleteEmptyIsMalformed(t *testing.T) {
	c := newTestClient(t, `{"model":"llama3.1","created_at":"2025-01-01T00:00:00Z","message":{"role":"assistant","content":""},"done":true}`, nil)

	_, err := c.Complete(context.Background(), []llm.Message{llm.NewUserMessage("hi")}, nil, llm.ToolChoiceAuto)
	require.ErrorIs(t, err, llm.ErrMalformedReply)
}

func TestConvertMessages(t *testing.T) {
	c := &OllamaClient{}
	call := llm.ToolCall{ID: "call_1", Name: "identify_material", Arguments: `{"peak_1":465}`}

	msgs := c.convertMessages([]llm.Message{
		llm.NewSystemMessage("sys"),
		llm.NewToolCallMessage(call),
		llm.NewToolResultMessage(call, `{"success":true}`),
	})
	require.Len(t, msgs, 3)
	require.Equal(t, "system", msgs[0].Role)

	require.Len(t, msgs[1].ToolCalls, 1)
	require.Equal(t, "call_1", msgs[1].ToolCalls[0].ID)
	require.Equal(t, "identify_material", msgs[1].ToolCalls[0].Function.Name)

	require.Equal(t, "tool", msgs[2].Role)
	require.Equal(t, "call_1", msgs[2].ToolCallID)
	require.Equal(t, "identify_material", msgs[2].ToolName)
}

func TestJSONFixingReadCloser(t *testing.T) {
	r := &jsonFixingReadCloser{body: io.NopCloser(strings.NewReader(`{"text":"costs \$5 \n ok"}`))}
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, `{"text":"costs $5 \n ok"}`, string(data))
}

func TestFactoryUsesDefaultURL(t *testing.T) {
	sys := config.DefaultSystemConfig()
	engines, err := (&OllamaFactory{}).Create(llm.ProviderGroupConfig{Type: "ollama", Models: []string{"a"}}, sys)
	require.NoError(t, err)
	require.Len(t, engines, 1)
	require.Equal(t, "ollama", engines[0].Provider())

	_, err = NewOllamaClient("a", "", 0, nil)
	require.Error(t, err)
}

func TestIsTransientError(t *testing.T) {
	c := &OllamaClient{}
	require.False(t, c.IsTransientError(nil))
	require.False(t, c.IsTransientError(errors.New("model 'x' not found")))
	require.True(t, c.IsTransientError(errors.New("dial tcp 127.0.0.1:11434: connect: connection refused")))
}
