package domain

import "time"

// Session is one conversation or task. It carries the per-session inputs of the
// current scope: the application mode and the toggled layers and tools.
type Session struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Mode                string    `json:"mode,omitempty"`
	ActiveLayers        []string  `json:"active_layers,omitempty"`
	ActiveTools         []string  `json:"active_tools,omitempty"`
	Model               string    `json:"model,omitempty"`
	CompactionThreshold float64   `json:"compaction_threshold,omitempty"` // 0-1, fraction of max context window
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Event is a single immutable turn in a session log.
type Event struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Timestamp time.Time         `json:"timestamp"`
	Kind      EventKind         `json:"kind"`
	Content   string            `json:"content"`
	ToolName  string            `json:"tool_name,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ContextEntry is one element of a compiled working context. Entries are built
// fresh on every compile and never persisted.
type ContextEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Scope holds the per-turn parameters handed to every context processor.
type Scope struct {
	CurrentMessage string      `json:"current_message"`
	ActiveTools    []string    `json:"active_tools,omitempty"`
	Mode           string      `json:"mode,omitempty"`
	Facts          []FactChunk `json:"facts,omitempty"`
	ActiveLayers   []string    `json:"active_layers,omitempty"`
}

// FactChunk is a researched fact with a confidence score in [0,1].
type FactChunk struct {
	ID         string  `json:"id"`
	Fact       string  `json:"fact"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// MemoryRecord is a distilled knowledge fragment in long-term memory.
type MemoryRecord struct {
	Key       string    `json:"key"`
	Text      string    `json:"text"`
	Summary   string    `json:"summary,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// VectorRecord is an embedded record held by the vector index.
type VectorRecord struct {
	ID        string            `json:"id"`
	Embedding []float32         `json:"embedding"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Artifact is a user-supplied file visible to a session's turns.
type Artifact struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mime_type"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// Layer is a knowledge layer: a named behavioral policy that, when active,
// injects its instruction into the working context and may unlock tools.
type Layer struct {
	ID          string   `json:"id" yaml:"id"`
	Label       string   `json:"label" yaml:"label"`
	Instruction string   `json:"instruction" yaml:"instruction"`
	Tools       []string `json:"tools,omitempty" yaml:"tools,omitempty"`
	Static      bool     `json:"static,omitempty" yaml:"-"`
}

// Record is the envelope exchanged with the persistent record store.
type Record struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Index      string    `json:"index,omitempty"` // secondary key
	Data       []byte    `json:"data"`
	CreatedAt  time.Time `json:"created_at"`
}

// Model represents an available LLM model.
type Model struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Provider  string `json:"provider"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// Task is an application-state work item managed by the built-in tools.
type Task struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Priority  string    `json:"priority"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Task statuses.
const (
	TaskOpen = "open"
	TaskDone = "done"
)

// Workflow is an ordered plan generated for a goal.
type Workflow struct {
	ID        string    `json:"id"`
	Goal      string    `json:"goal"`
	Steps     []string  `json:"steps"`
	CreatedAt time.Time `json:"created_at"`
}
