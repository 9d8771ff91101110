package tools

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// argument returns the named tool argument asserted to T. Missing arguments
// and arguments of another JSON type both report false.
func argument[T any](req mcp.CallToolRequest, key string) (T, bool) {
	var zero T
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return zero, false
	}
	v, ok := args[key].(T)
	return v, ok
}

// optionalString returns a trimmed string argument, or "" when absent.
func optionalString(req mcp.CallToolRequest, key string) string {
	s, _ := argument[string](req, key)
	return strings.TrimSpace(s)
}

// optionalNumber returns a numeric argument; JSON numbers decode as float64.
func optionalNumber(req mcp.CallToolRequest, key string) (float64, bool) {
	return argument[float64](req, key)
}
