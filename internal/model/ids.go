package model

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns prefix-<uuid>. Prefixes keep ids readable in logs and CLI output
// ("board-…", "layer-…", "group-…", "win-…").
func NewID(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "-" + uuid.NewString()
}

// HasPrefix reports whether id looks like an id minted by NewID(prefix).
func HasPrefix(id, prefix string) bool {
	id = strings.TrimSpace(id)
	return strings.HasPrefix(id, prefix+"-") && len(id) > len(prefix)+1
}
