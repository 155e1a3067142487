package llm

// Role is the author of a conversation turn, as the remote API names it.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one entry of the outbound conversation context.
type Turn struct {
	Role Role
	Text string
}

// Request is a completion request.
type Request struct {
	// Contents is the conversation so far, oldest first.
	Contents []Turn

	// SystemInstruction is sent only when non-empty.
	SystemInstruction string
}

// Response holds the first candidate of a completion.
type Response struct {
	// Parts are the candidate's text parts in order.
	Parts        []string
	Model        string
	FinishReason string
}
