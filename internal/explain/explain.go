// Package explain asks a language model why an author matches a query.
package explain

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kenkyu/internal/gemini"
)

// NoTextsFallback is returned when the author has no stored texts.
const NoTextsFallback = "No research texts found for this professor."

// UnavailableMessage is the user-facing text when generation fails.
const UnavailableMessage = "Could not generate explanation at this time."

// DefaultModel is the generation model used by default.
const DefaultModel = "gemini-1.5-pro"

// Explainer produces free text explaining a match. The output is returned verbatim.
type Explainer interface {
	Explain(ctx context.Context, query string, texts []string) (string, error)
}

// BuildPrompt assembles the instruction, the query and the author's texts.
func BuildPrompt(query string, texts []string) string {
	var b strings.Builder
	b.WriteString("You are an expert academic assistant. Your output will be shown on a card for a specific professor. ")
	b.WriteString("Always make an effort to connect the user's search query to the professor's research interests, even if the connection is not obvious. ")
	b.WriteString("Be creative and imaginative in finding possible links between the search and the research. ")
	b.WriteString("Do NOT simply say there is no similarity; instead, try to find any plausible or tangential connection. ")
	b.WriteString("Only explain why THIS professor matches the user's search, quoting or paraphrasing relevant research below. ")
	b.WriteString("Do NOT suggest searching for other professors or topics. ")
	b.WriteString("Be friendly, helpful, and use first or second person (e.g., 'You might be interested in this professor's work...'). ")
	fmt.Fprintf(&b, "\n\nUser's search: '%s'\n", query)
	b.WriteString("Professor's research abstracts:\n")
	b.WriteString(strings.Join(texts, "\n---\n"))
	b.WriteString("\n\nIn 2-3 sentences, explain to the user why this professor matches their search, quoting or paraphrasing relevant research.")
	return b.String()
}

// GeminiExplainer calls generateContent.
type GeminiExplainer struct {
	client *gemini.Client
	model  string
}

// NewGeminiExplainer returns an explainer using model.
func NewGeminiExplainer(client *gemini.Client, model string) *GeminiExplainer {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiExplainer{client: client, model: model}
}

type generateRequest struct {
	Contents []gemini.Content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content gemini.Content `json:"content"`
	} `json:"candidates"`
}

// Explain sends the prompt and joins the text parts of the first candidate.
func (g *GeminiExplainer) Explain(ctx context.Context, query string, texts []string) (string, error) {
	content := gemini.TextContent(BuildPrompt(query, texts))
	content.Role = "user"
	var resp generateResponse
	if err := g.client.Call(ctx, g.model, "generateContent", generateRequest{Contents: []gemini.Content{content}}, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	var out strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		out.WriteString(p.Text)
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("gemini returned an empty candidate")
	}
	return out.String(), nil
}

// Static returns the same text for every match. Used offline.
type Static string

// Explain returns s.
func (s Static) Explain(context.Context, string, []string) (string, error) {
	return string(s), nil
}
