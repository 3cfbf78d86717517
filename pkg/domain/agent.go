package domain

// AgentStatus is a state of the agent runtime's state machine.
type AgentStatus string

const (
	AgentIdle            AgentStatus = "IDLE"
	AgentThinking        AgentStatus = "THINKING"
	AgentResponding      AgentStatus = "RESPONDING"
	AgentNegotiatingTool AgentStatus = "NEGOTIATING_TOOL"
	AgentExecuting       AgentStatus = "EXECUTING"
	AgentSynthesizing    AgentStatus = "SYNTHESIZING"
	AgentError           AgentStatus = "ERROR"
)

// Terminal reports whether no directive is in flight in this status.
func (s AgentStatus) Terminal() bool {
	return s == AgentIdle || s == AgentError || s == ""
}

// AgentTurn is one entry of a directive's history.
type AgentTurn struct {
	Role     Role   `json:"role"`
	Content  string `json:"content"`
	ToolName string `json:"tool_name,omitempty"`
}

// AgenticState is the observable state of one agent runtime.
type AgenticState struct {
	Status     AgentStatus `json:"status"`
	IsThinking bool        `json:"is_thinking"`
	ActiveTool string      `json:"active_tool,omitempty"`
	LastResult *ToolResult `json:"last_result,omitempty"`
	History    []AgentTurn `json:"history"`
	Error      string      `json:"error,omitempty"`
}

// Clone returns a deep copy so snapshots never alias runtime state.
func (s AgenticState) Clone() AgenticState {
	out := s
	if s.LastResult != nil {
		r := *s.LastResult
		out.LastResult = &r
	}
	out.History = append([]AgentTurn(nil), s.History...)
	return out
}
