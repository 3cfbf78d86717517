package domain

// Role defines the sender of a working-context entry.
type Role string

const (
	// RoleUser indicates content presented to the model as user input.
	RoleUser Role = "user"
	// RoleModel indicates a prior model response.
	RoleModel Role = "model"
	// RoleSystem indicates system-level guidance (schemas, facts, layers).
	RoleSystem Role = "system"
	// RoleFunction indicates tool call or tool result traffic.
	RoleFunction Role = "function"
)

// EventKind defines the kind of a session event.
type EventKind string

const (
	EventUserMessage   EventKind = "user_message"
	EventModelResponse EventKind = "model_response"
	EventToolCall      EventKind = "tool_call"
	EventToolResult    EventKind = "tool_result"
	EventSystemNote    EventKind = "system_note"
	EventError         EventKind = "error"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventUserMessage, EventModelResponse, EventToolCall, EventToolResult, EventSystemNote, EventError:
		return true
	}
	return false
}

// Role maps an event kind onto the working-context role used when the event is
// replayed to the model. System notes and errors stay in-band as user content.
func (k EventKind) Role() Role {
	switch k {
	case EventModelResponse:
		return RoleModel
	case EventToolCall, EventToolResult:
		return RoleFunction
	default:
		return RoleUser
	}
}

// Metadata keys used on events.
const (
	// MetaCompaction marks a system note that summarizes compacted history.
	MetaCompaction = "compaction"
	// MetaToolCallID links tool_call and tool_result events.
	MetaToolCallID = "tool_call_id"
	// MetaModel records the model that produced a response.
	MetaModel = "model"
)
