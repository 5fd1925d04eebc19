package agent

import (
	"fmt"
	"strings"
)

// ValidationError lists every problem found with a tool call's parameters.
type ValidationError struct {
	Tool       string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("parameter validation failed for %s: %s", e.Tool, strings.Join(e.Violations, "; "))
}

// UnknownAPIError is returned when an operation names an API that has not
// been registered.
type UnknownAPIError struct {
	Name string
}

func (e *UnknownAPIError) Error() string {
	return fmt.Sprintf("unknown API: %s", e.Name)
}

// ToolNotFoundError is returned when no registered API has the named tool.
type ToolNotFoundError struct {
	Name      string
	Available []string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found; available tools: %s", e.Name, strings.Join(e.Available, ", "))
}

// InvalidNameError is returned when an API name cannot be registered.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid API name %q: must be non-empty without '/', '\\' or '..'", e.Name)
}
