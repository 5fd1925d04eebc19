package discovery

import (
	"fmt"
	"strings"
)

// ToolDocumentation renders a markdown description of tool.
func ToolDocumentation(tool Tool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n", tool.Name)
	fmt.Fprintf(&sb, "**Method:** %s\n", tool.Method)
	fmt.Fprintf(&sb, "**Path:** %s\n", tool.Path)
	fmt.Fprintf(&sb, "**Description:** %s\n\n", tool.Description)

	if len(tool.Parameters) > 0 {
		sb.WriteString("### Parameters:\n")
		for _, name := range sortedKeys(tool.Parameters) {
			p := tool.Parameters[name]
			req := "optional"
			if p.Required {
				req = "required"
			}
			fmt.Fprintf(&sb, "- **%s** (%s) [%s] `%s`: %s\n", name, req, p.Location, p.Type, p.Description)
		}
		sb.WriteString("\n")
	}

	if len(tool.Tags) > 0 {
		fmt.Fprintf(&sb, "**Tags:** %s\n", strings.Join(tool.Tags, ", "))
	}
	return sb.String()
}
