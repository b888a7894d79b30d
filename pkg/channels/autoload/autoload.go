// Package autoload registers every front-end channel. Import it for its side
// effects.
package autoload

import (
	_ "crucible/pkg/channels/terminal"
	_ "crucible/pkg/channels/web"
)
