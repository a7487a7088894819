package service

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"google.golang.org/genai"

	"github.com/licito/backend/config"
)

// GeminiModel implements ChatModel on the Gemini API
type GeminiModel struct {
	client *genai.Client
	model  string
}

func NewGeminiModel(ctx context.Context, cfg *config.AssistantConfig) (*GeminiModel, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiModel{client: client, model: cfg.Model}, nil
}

func (g *GeminiModel) Stream(ctx context.Context, system string, history []Turn, tools []ToolSpec) iter.Seq2[StreamChunk, error] {
	contents := toContents(history)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Tools:             []*genai.Tool{{FunctionDeclarations: toDeclarations(tools)}},
	}

	return func(yield func(StreamChunk, error) bool) {
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, cfg) {
			if err != nil {
				yield(StreamChunk{}, err)
				return
			}
			chunk, err := fromResponse(resp)
			if err != nil {
				yield(StreamChunk{}, err)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

func fromResponse(resp *genai.GenerateContentResponse) (StreamChunk, error) {
	var chunk StreamChunk
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return chunk, fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return chunk, nil
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return chunk, nil
	}
	for _, part := range cand.Content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			chunk.Calls = append(chunk.Calls, ToolCall{
				ID:   part.FunctionCall.ID,
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
			continue
		}
		if part.Text != "" && !part.Thought {
			chunk.Text += part.Text
		}
	}
	return chunk, nil
}

func toContents(history []Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, t := range history {
		var parts []*genai.Part
		if t.Text != "" {
			parts = append(parts, genai.NewPartFromText(t.Text))
		}
		for _, c := range t.Calls {
			p := genai.NewPartFromFunctionCall(c.Name, c.Args)
			p.FunctionCall.ID = c.ID
			parts = append(parts, p)
		}
		for _, r := range t.Results {
			p := genai.NewPartFromFunctionResponse(r.Name, r.Result)
			p.FunctionResponse.ID = r.ID
			parts = append(parts, p)
		}
		if len(parts) == 0 {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if t.Role == TurnModel {
			role = genai.Role(genai.RoleModel)
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents
}

func toDeclarations(tools []ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decl := &genai.FunctionDeclaration{Name: t.Name, Description: t.Description}
		if len(t.Params) > 0 {
			schema := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
			for _, p := range t.Params {
				typ := genai.TypeString
				if p.Type == "integer" {
					typ = genai.TypeInteger
				}
				schema.Properties[p.Name] = &genai.Schema{Type: typ, Description: p.Description, Enum: p.Enum}
				if p.Required {
					schema.Required = append(schema.Required, p.Name)
				}
			}
			decl.Parameters = schema
		}
		decls = append(decls, decl)
	}
	return decls
}

// UnavailableModel is used when no LLM is configured; every stream fails
type UnavailableModel struct{}

func (UnavailableModel) Stream(context.Context, string, []Turn, []ToolSpec) iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		yield(StreamChunk{}, errors.Join(ErrNotConfigured, errors.New("assistant model unavailable")))
	}
}
