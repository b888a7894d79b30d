// Package autoload registers every engine provider. Import it for its side
// effects.
package autoload

import (
	_ "crucible/pkg/llm/gemini"
	_ "crucible/pkg/llm/ollama"
	_ "crucible/pkg/llm/openailm"
)
