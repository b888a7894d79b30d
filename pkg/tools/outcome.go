package tools

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Dispatch failure kinds. Every failed Outcome unwraps to one of them.
var (
	ErrUnknownTool     = errors.New("unknown tool")
	ErrArgumentParse   = errors.New("argument parse error")
	ErrMissingArgument = errors.New("missing argument")
	ErrArgumentType    = errors.New("invalid argument type")
	ErrToolExecution   = errors.New("tool execution failed")
)

// ToolError ties a dispatch failure to the tool that caused it.
type ToolError struct {
	Tool string
	Kind error
	Err  error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *ToolError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Outcome is the result of dispatching one invocation.
type Outcome struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`

	// Err is the typed failure, nil on success. Not serialized.
	Err error `json:"-"`
}

// Succeeded wraps a tool result.
func Succeeded(result any) Outcome {
	return Outcome{Success: true, Result: result}
}

// Failed builds a failure outcome of the given kind.
func Failed(tool string, kind error, cause error) Outcome {
	err := &ToolError{Tool: tool, Kind: kind, Err: cause}
	return Outcome{Success: false, Error: err.Error(), Err: err}
}

// Serialize renders the outcome as the JSON text placed in a tool turn:
// {"success":true,"result":...} or {"success":false,"error":"..."}.
func (o Outcome) Serialize() string {
	data, err := json.Marshal(o)
	if err != nil {
		fallback, _ := json.Marshal(Outcome{Error: fmt.Sprintf("failed to serialize tool result: %v", err)})
		return string(fallback)
	}
	return string(data)
}
