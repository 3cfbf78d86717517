package model

import (
	"context"
	"strings"

	"github.com/nstogner/cortex/pkg/domain"
)

// ContentType identifies the kind of a message part.
type ContentType string

const (
	ContentText       ContentType = "text"
	ContentToolCall   ContentType = "tool_call"
	ContentToolResult ContentType = "tool_result"
)

// Message represents a message in the model's conversation context.
type Message struct {
	// Role indicates the sender (user, model, system, function).
	Role domain.Role
	// Content holds the message parts.
	Content []Content
}

// Content represents a single component of a message.
type Content struct {
	Type ContentType

	// Text content (when Type == ContentText).
	Text string `json:"text,omitempty"`

	// Tool call (when Type == ContentToolCall).
	ToolCall *domain.ToolCall `json:"tool_call,omitempty"`

	// Tool response (when Type == ContentToolResult).
	ToolResponse *ToolResponse `json:"tool_response,omitempty"`

	// ThoughtSignature is an opaque signature for the model's internal state.
	// Must be round-tripped back to the model on the next request.
	ThoughtSignature []byte `json:"thought_signature,omitempty"`
}

// ToolResponse answers a tool call.
type ToolResponse struct {
	CallID string
	Name   string
	Result domain.ToolResult
}

// Request is one call to the model.
type Request struct {
	// Model identifies which model to use (e.g. "gemini-2.0-flash").
	Model string
	// Instructions is the system prompt.
	Instructions string
	// Messages is the conversation history.
	Messages []Message
	// Tools are the declarations the model may call.
	Tools []domain.ToolSchema
}

// Provider represents a service that provides LLMs (e.g. Gemini, OpenAI).
type Provider interface {
	// Name returns the provider's identifier (e.g. "gemini", "openai").
	Name() string

	// List returns the available models from this provider.
	List(ctx context.Context) ([]domain.Model, error)

	// Stream sends a request to the LLM and returns a stream of responses.
	Stream(ctx context.Context, req Request) (ModelStream, error)
}

// ModelStream abstracts the stream of responses from the model.
type ModelStream interface {
	// FullMessage blocks until the complete response is available and returns it.
	FullMessage() (Message, error)

	// Close releases resources associated with this stream.
	Close() error
}

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// TextMessage builds a single-part text message.
func TextMessage(role domain.Role, text string) Message {
	return Message{Role: role, Content: []Content{{Type: ContentText, Text: text}}}
}

// FromContext converts compiled working-context entries into messages.
func FromContext(entries []domain.ContextEntry) []Message {
	msgs := make([]Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, TextMessage(e.Role, e.Content))
	}
	return msgs
}

// Text concatenates the text parts of m.
func (m Message) Text() string {
	var sb strings.Builder
	for _, c := range m.Content {
		if c.Type == ContentText {
			sb.WriteString(c.Text)
		}
	}
	return sb.String()
}

// ToolCalls returns the tool calls requested in m, in order.
func (m Message) ToolCalls() []domain.ToolCall {
	var out []domain.ToolCall
	for _, c := range m.Content {
		if c.Type == ContentToolCall && c.ToolCall != nil {
			out = append(out, *c.ToolCall)
		}
	}
	return out
}

// Generate streams req and waits for the full message.
func Generate(ctx context.Context, p Provider, req Request) (Message, error) {
	stream, err := p.Stream(ctx, req)
	if err != nil {
		return Message{}, err
	}
	defer stream.Close()
	return stream.FullMessage()
}
