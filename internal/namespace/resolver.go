// ABOUTME: Maps prefixed tool names to their owning backend server.
// ABOUTME: Pure prefix matching with strip/add helpers; no state, no I/O.

package namespace

import (
	"fmt"
	"strings"

	"github.com/2389/ward-gateway/internal/config"
)

// NotFoundError indicates no configured server owns the given tool name.
type NotFoundError struct {
	Tool string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("No server found for tool: %s", e.Tool)
}

// ServerForTool returns the logical name and configuration of the
// configured server whose tool_prefix is a literal prefix of toolName.
// When prefixes nest (e.g. "fs." and "fs.ext."), the longest match wins,
// so resolution is deterministic regardless of map iteration order.
// Returns a NotFoundError when no prefix matches, including tool names
// with no prefix at all.
func ServerForTool(toolName string, servers map[string]config.BackendConfig) (string, config.BackendConfig, error) {
	var (
		bestName    string
		bestBackend config.BackendConfig
		found       bool
	)
	for name, backend := range servers {
		if !strings.HasPrefix(toolName, backend.ToolPrefix) {
			continue
		}
		if !found || len(backend.ToolPrefix) > len(bestBackend.ToolPrefix) {
			bestName = name
			bestBackend = backend
			found = true
		}
	}
	if !found {
		return "", config.BackendConfig{}, &NotFoundError{Tool: toolName}
	}
	return bestName, bestBackend, nil
}

// StripToolPrefix removes prefix from toolName if present, otherwise returns
// toolName unchanged. Callers that need strictness must check membership
// first via ServerForTool.
func StripToolPrefix(toolName, prefix string) string {
	if strings.HasPrefix(toolName, prefix) {
		return strings.TrimPrefix(toolName, prefix)
	}
	return toolName
}

// AddToolPrefix prepends prefix to name. It does not check for an existing
// prefix, so double-prefixing is possible if misused; avoiding that is the
// caller's responsibility.
func AddToolPrefix(name, prefix string) string {
	return prefix + name
}
