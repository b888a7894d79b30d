package openailm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"crucible/pkg/llm"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var identifySchema = llm.ToolSchema{
	Name:        "identify_material",
	Description: "Identify a material.",
	Parameters: []llm.ParameterSpec{
		{Name: "peak_1", Type: llm.TypeNumber, Description: "First peak.", Required: true},
	},
}

func newTestServer(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if captured != nil {
			require.NoError(t, json.Unmarshal(data, captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompleteToolCall(t *testing.T) {
	var req map[string]any
	srv := newTestServer(t, http.StatusOK, `{
		"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "local",
		"choices": [{
			"index": 0, "finish_reason": "tool_calls",
			"message": {"role": "assistant", "content": null, "tool_calls": [
				{"id": "call_abc", "type": "function", "function": {"name": "identify_material", "arguments": "{\"peak_1\":465}"}}
			]}
		}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`, &req)

	c := NewClient("llamacpp", "not-needed", "local", srv.URL, map[string]any{"temperature": 0.7, "max_tokens": float64(512)})

	reply, err := c.Complete(context.Background(), []llm.Message{
		llm.NewSystemMessage("be helpful"),
		llm.NewUserMessage("465?"),
	}, []llm.ToolSchema{identifySchema}, llm.ToolChoiceAuto)
	require.NoError(t, err)

	calls, ok := reply.(llm.ToolCallReply)
	require.True(t, ok)
	require.Equal(t, []llm.ToolCall{{ID: "call_abc", Name: "identify_material", Arguments: `{"peak_1":465}`}}, calls.Calls)

	require.Equal(t, "local", req["model"])
	require.Equal(t, "auto", req["tool_choice"])
	require.Equal(t, 0.7, req["temperature"])
	require.EqualValues(t, 512, req["max_completion_tokens"])

	tools := req["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	require.Equal(t, "identify_material", fn["name"])
	require.Equal(t, []any{"peak_1"}, fn["parameters"].(map[string]any)["required"])

	msgs := req["messages"].([]any)
	require.Len(t, msgs, 2)
	require.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestCompleteText(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{
		"id": "chatcmpl-2", "object": "chat.completion", "created": 1, "model": "local",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Ceria."}}]
	}`, nil)

	c := NewClient("openai", "k", "local", srv.URL, nil)
	reply, err := c.Complete(context.Background(), []llm.Message{llm.NewUserMessage("hi")}, nil, llm.ToolChoiceNone)
	require.NoError(t, err)
	require.Equal(t, llm.TextReply{Content: "Ceria."}, reply)
}

func TestToolChoiceNeedsTools(t *testing.T) {
	const body = `{
		"id": "chatcmpl-4", "object": "chat.completion", "created": 1, "model": "local",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "ok"}}]
	}`

	var withTools map[string]any
	srv := newTestServer(t, http.StatusOK, body, &withTools)
	c := NewClient("openai", "k", "local", srv.URL, nil)
	_, err := c.Complete(context.Background(), []llm.Message{llm.NewUserMessage("hi")}, []llm.ToolSchema{identifySchema}, llm.ToolChoiceNone)
	require.NoError(t, err)
	require.Equal(t, "none", withTools["tool_choice"])
	require.Len(t, withTools["tools"], 1)

	var without map[string]any
	srv = newTestServer(t, http.StatusOK, body, &without)
	c = NewClient("openai", "k", "local", srv.URL, nil)
	_, err = c.Complete(context.Background(), []llm.Message{llm.NewUserMessage("hi")}, nil, llm.ToolChoiceNone)
	require.NoError(t, err)
	require.NotContains(t, without, "tool_choice")
	require.NotContains(t, without, "tools")
}

func TestCompleteEmptyReplyIsMalformed(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{
		"id": "chatcmpl-3", "object": "chat.completion", "created": 1, "model": "local",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": ""}}]
	}`, nil)

	c := NewClient("openai", "k", "local", srv.URL, nil)
	_, err := c.Complete(context.Background(), []llm.Message{llm.NewUserMessage("hi")}, nil, llm.ToolChoiceAuto)
	require.ErrorIs(t, err, llm.ErrMalformedReply)
}

func TestCompleteServerErrorIsTransient(t *testing.T) {
	srv := newTestServer(t, http.StatusServiceUnavailable, `{"error": {"message": "overloaded", "type": "server_error"}}`, nil)

	c := NewClient("openai", "k", "local", srv.URL, nil)
	_, err := c.Complete(context.Background(), []llm.Message{llm.NewUserMessage("hi")}, nil, llm.ToolChoiceAuto)
	require.Error(t, err)
	require.True(t, c.IsTransientError(err))
}

func TestIsTransientError(t *testing.T) {
	c := NewClient("openai", "k", "m", "", nil)
	require.False(t, c.IsTransientError(nil))
	require.True(t, c.IsTransientError(errors.New("dial tcp: connection refused")))
	require.False(t, c.IsTransientError(errors.New("401 unauthorized")))
}

func TestConvertMessagesToolRoundTrip(t *testing.T) {
	call := llm.ToolCall{ID: "call_1", Name: "identify_material", Arguments: `{"peak_1":465}`}
	msgs := convertMessages([]llm.Message{
		llm.NewUserMessage("465?"),
		llm.NewToolCallMessage(call),
		llm.NewToolResultMessage(call, `{"success":true}`),
		llm.NewAssistantMessage("Ceria."),
	})

	data, err := json.Marshal(msgs)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 4)

	tc := decoded[1]["tool_calls"].([]any)[0].(map[string]any)
	require.Equal(t, "call_1", tc["id"])
	require.Equal(t, "identify_material", tc["function"].(map[string]any)["name"])

	require.Equal(t, "tool", decoded[2]["role"])
	require.Equal(t, "call_1", decoded[2]["tool_call_id"])
	require.Equal(t, "assistant", decoded[3]["role"])
}

func TestFactory(t *testing.T) {
	engines, err := (&OpenAIFactory{}).Create(llm.ProviderGroupConfig{
		Type:   "llamacpp",
		Models: []string{"a", "b"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, engines, 2)
	require.Equal(t, "llamacpp", engines[0].Provider())

	f, ok := llm.GetProviderFactory("openai")
	require.True(t, ok)
	require.NotNil(t, f)
}
