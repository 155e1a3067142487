package chat

import (
	"strings"

	"github.com/MakeNowJust/heredoc"
)

// SystemPrompt is attached to the first turn of every session.
var SystemPrompt = strings.TrimSpace(heredoc.Doc(`
	You are QuantumSyntax, an expert AI assistant for web development and programming. Provide helpful, well-organized responses with:

	- Clear explanations and complete code solutions
	- Proper formatting with headers and lists when helpful
	- Working code examples with comments
	- Best practices and tips
	- Professional but friendly tone

	Focus on being helpful and practical. Use markdown formatting for better readability.
`))

// EnhanceSuffix is appended to prompts that look like web or programming questions.
const EnhanceSuffix = "\n\nPlease provide a complete, working solution with clear explanations and best practices."

// NoResponse replaces an empty model reply.
const NoResponse = "⚠️ No response from model."

// OverloadFallback is shown after an overload failure.
var OverloadFallback = strings.TrimSpace(heredoc.Doc(`
	I'm experiencing high traffic right now. Here are some general tips for your request:

	**For Frontend Development:**
	- Use semantic HTML5 elements
	- Implement responsive design with CSS Grid/Flexbox
	- Add interactive JavaScript functionality
	- Ensure cross-browser compatibility
	- Follow accessibility guidelines

	**Common Frontend Patterns:**
	- Component-based architecture
	- Mobile-first design approach
	- Progressive enhancement
	- Performance optimization

	Please try your request again in a few minutes when the API is less busy.
`))
