package mcp

import "github.com/mark3labs/mcp-go/mcp"

var sendToolDef = mcp.NewTool("chat_send",
	mcp.WithDescription("Send a message to the QuantumSyntax assistant in the active chat session. Starts a session when none is active. Returns the reply text; remote failures come back as a failure message with a category code."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("The user message"),
	),
)

var newToolDef = mcp.NewTool("chat_new",
	mcp.WithDescription("Start a new empty chat session and make it active."),
)

var listToolDef = mcp.NewTool("chat_list",
	mcp.WithDescription("List chat sessions, most recent first, with title, last-message preview and message count."),
)

var loadToolDef = mcp.NewTool("chat_load",
	mcp.WithDescription("Make a chat session active and return its messages."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Session ID from chat_list"),
	),
)

var deleteToolDef = mcp.NewTool("chat_delete",
	mcp.WithDescription("Delete a chat session. Deleting the active session activates the most recent remaining one, or a new session."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Session ID from chat_list"),
	),
)

var separateToolDef = mcp.NewTool("code_separate",
	mcp.WithDescription("Split a combined HTML document into its markup, stylesheet and script. External stylesheet links and script sources are listed as comments."),
	mcp.WithString("code",
		mcp.Required(),
		mcp.Description("The combined HTML document"),
	),
)

var previewToolDef = mcp.NewTool("code_preview",
	mcp.WithDescription("Recombine separated parts into one runnable preview document. Pass either code, or any of html, css and js."),
	mcp.WithString("code",
		mcp.Description("A combined document to separate and recombine"),
	),
	mcp.WithString("html",
		mcp.Description("Markup fragment"),
	),
	mcp.WithString("css",
		mcp.Description("Stylesheet fragment"),
	),
	mcp.WithString("js",
		mcp.Description("Script fragment"),
	),
)

var renderToolDef = mcp.NewTool("markdown_render",
	mcp.WithDescription("Render assistant-style markdown (headers, lists, emphasis, inline code and fenced code blocks) to sanitized HTML."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("Markdown text"),
	),
)
