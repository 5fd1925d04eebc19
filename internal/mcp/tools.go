package mcp

import "github.com/mark3labs/mcp-go/mcp"

// registerAPITool defines the register_api MCP tool.
var registerAPITool = mcp.NewTool("register_api",
	mcp.WithDescription("Register an API so its operations become callable tools. Without spec_url the name is looked up in the OCP registry."),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Name to register the API under, e.g. github"),
	),
	mcp.WithString("spec_url",
		mcp.Description("URL or local path of an OpenAPI document"),
	),
	mcp.WithString("base_url",
		mcp.Description("Override for the API base URL"),
	),
)

// listToolsTool defines the list_tools MCP tool.
var listToolsTool = mcp.NewTool("list_tools",
	mcp.WithDescription("List the tools of a registered API, or of every registered API."),
	mcp.WithString("api_name",
		mcp.Description("Restrict the listing to one API"),
	),
)

// searchToolsTool defines the search_tools MCP tool.
var searchToolsTool = mcp.NewTool("search_tools",
	mcp.WithDescription("Search registered tools by name and description."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Case-insensitive text to match"),
	),
	mcp.WithString("api_name",
		mcp.Description("Restrict the search to one API"),
	),
)

// callToolTool defines the call_tool MCP tool.
var callToolTool = mcp.NewTool("call_tool",
	mcp.WithDescription("Call a registered tool. The request carries the agent's OCP context headers."),
	mcp.WithString("tool_name",
		mcp.Required(),
		mcp.Description("Tool to call, as shown by list_tools"),
	),
	mcp.WithObject("parameters",
		mcp.Description("Tool parameters by name"),
	),
	mcp.WithString("api_name",
		mcp.Description("API to take the tool from when names collide"),
	),
)

// getContextTool defines the get_context MCP tool.
var getContextTool = mcp.NewTool("get_context",
	mcp.WithDescription("Return the agent context as JSON, including interaction history."),
)

// updateGoalTool defines the update_goal MCP tool.
var updateGoalTool = mcp.NewTool("update_goal",
	mcp.WithDescription("Set the agent's current goal."),
	mcp.WithString("goal",
		mcp.Required(),
		mcp.Description("The new goal"),
	),
	mcp.WithString("summary",
		mcp.Description("Optional summary of the conversation so far"),
	),
)
