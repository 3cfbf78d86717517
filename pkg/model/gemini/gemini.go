package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/model"
)

// Gemini content roles.
const (
	roleUser  = "user"
	roleModel = "model"
)

// DefaultEmbeddingModel is used when no embedding model is configured.
const DefaultEmbeddingModel = "gemini-embedding-001"

// Provider implements model.Provider using the Google Gen AI SDK.
type Provider struct {
	client *genai.Client
}

// Verify interface compliance.
var _ model.Provider = (*Provider)(nil)

// New creates a new Gemini provider.
func New(ctx context.Context, apiKey string) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "gemini" }

// List returns available Gemini models.
func (p *Provider) List(ctx context.Context) ([]domain.Model, error) {
	var models []domain.Model
	for m, err := range p.client.Models.All(ctx) {
		if err != nil {
			return nil, err
		}

		// Filter for models that support generateContent.
		supportsGenerate := false
		if !strings.Contains(strings.ToLower(m.Name), "gemma") {
			for _, action := range m.SupportedActions {
				if action == "generateContent" {
					supportsGenerate = true
					break
				}
			}
		}

		if supportsGenerate {
			models = append(models, domain.Model{
				ID:        strings.TrimPrefix(m.Name, "models/"),
				Name:      m.DisplayName,
				Provider:  "gemini",
				MaxTokens: int(m.InputTokenLimit),
			})
		}
	}
	return models, nil
}

// Stream sends a request to the LLM and returns a stream.
func (p *Provider) Stream(ctx context.Context, req model.Request) (model.ModelStream, error) {
	slog.Debug("Gemini.Stream", "model", req.Model, "messageCount", len(req.Messages), "tools", len(req.Tools))

	config := &genai.GenerateContentConfig{
		Tools: toolDeclarations(req.Tools),
	}
	if req.Instructions != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.Instructions}},
		}
	}

	contents, err := toContents(req.Messages)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	iter := p.client.Models.GenerateContentStream(streamCtx, req.Model, contents, config)

	return &geminiStream{
		iter:   iter,
		cancel: cancel,
	}, nil
}

// toContents converts messages into Gemini contents. Gemini only knows the
// user and model roles: system and function text travels as user text, tool
// calls as model function calls and tool responses as user function
// responses. Consecutive parts with the same role are merged into one content.
func toContents(messages []model.Message) ([]*genai.Content, error) {
	var contents []*genai.Content
	toolNames := make(map[string]string) // tool call ID -> name

	add := func(role string, part *genai.Part) {
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, part)
			return
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{part}})
	}

	for _, msg := range messages {
		textRole := roleUser
		if msg.Role == domain.RoleModel {
			textRole = roleModel
		}

		for _, c := range msg.Content {
			switch c.Type {
			case model.ContentText:
				if c.Text == "" {
					continue
				}
				add(textRole, &genai.Part{
					Text:             c.Text,
					ThoughtSignature: c.ThoughtSignature,
				})
			case model.ContentToolCall:
				if c.ToolCall == nil {
					continue
				}
				toolNames[c.ToolCall.ID] = c.ToolCall.Name
				add(roleModel, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   c.ToolCall.ID,
						Name: c.ToolCall.Name,
						Args: c.ToolCall.Input,
					},
					ThoughtSignature: c.ThoughtSignature,
				})
			case model.ContentToolResult:
				if c.ToolResponse == nil {
					continue
				}
				name := c.ToolResponse.Name
				if name == "" {
					name = toolNames[c.ToolResponse.CallID]
				}
				if name == "" {
					name = c.ToolResponse.Result.ToolName
				}
				response, err := responseMap(c.ToolResponse.Result)
				if err != nil {
					return nil, fmt.Errorf("encoding tool response for %s: %w", name, err)
				}
				add(roleUser, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						ID:       c.ToolResponse.CallID,
						Name:     name,
						Response: response,
					},
				})
			}
		}
	}
	return contents, nil
}

// responseMap follows the Gemini convention of "output" for success and
// "error" for failure.
func responseMap(r domain.ToolResult) (map[string]any, error) {
	if r.Status == domain.StatusError {
		return map[string]any{"error": r.Error}, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return map[string]any{"output": out}, nil
}

func toolDeclarations(schemas []domain.ToolSchema) []*genai.Tool {
	if len(schemas) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(schemas))
	for _, s := range schemas {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  toSchema(s.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func toSchema(s *domain.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        schemaType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       toSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toSchema(prop)
		}
	}
	return out
}

func schemaType(t string) genai.Type {
	switch t {
	case domain.TypeString:
		return genai.TypeString
	case domain.TypeNumber:
		return genai.TypeNumber
	case domain.TypeInteger:
		return genai.TypeInteger
	case domain.TypeBoolean:
		return genai.TypeBoolean
	case domain.TypeArray:
		return genai.TypeArray
	default:
		return genai.TypeObject
	}
}

// geminiStream wraps the Gemini streaming iterator.
type geminiStream struct {
	iter   func(yield func(*genai.GenerateContentResponse, error) bool)
	cancel context.CancelFunc
}

func (s *geminiStream) FullMessage() (model.Message, error) {
	var fullText strings.Builder
	var toolCalls []model.Content
	var textSignature []byte

	for resp, err := range s.iter {
		if err != nil {
			return model.Message{}, err
		}
		if resp == nil {
			continue
		}
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text != "" && !part.Thought {
					if len(part.ThoughtSignature) > 0 {
						textSignature = part.ThoughtSignature
					}
					fullText.WriteString(part.Text)
				}
				if part.FunctionCall != nil {
					toolCalls = append(toolCalls, toolCallContent(part))
				}
			}
		}
	}

	var content []model.Content
	if fullText.Len() > 0 {
		content = append(content, model.Content{
			Type:             model.ContentText,
			Text:             fullText.String(),
			ThoughtSignature: textSignature,
		})
	}
	content = append(content, toolCalls...)

	return model.Message{
		Role:    domain.RoleModel,
		Content: content,
	}, nil
}

func toolCallContent(part *genai.Part) model.Content {
	fc := part.FunctionCall
	id := fc.ID
	if id == "" {
		id = "call-" + uuid.New().String()
	}
	args := fc.Args
	if args == nil {
		args = map[string]any{}
	}
	return model.Content{
		Type: model.ContentToolCall,
		ToolCall: &domain.ToolCall{
			ID:    id,
			Name:  fc.Name,
			Input: args,
		},
		ThoughtSignature: part.ThoughtSignature,
	}
}

func (s *geminiStream) Close() error {
	s.cancel()
	return nil
}
