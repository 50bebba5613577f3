package genai

import (
	"context"
	"fmt"
	"strings"
)

// Highlight is one extracted takeaway from a pairing session transcript.
type Highlight struct {
	ID         string  `json:"id"`
	Timestamp  float64 `json:"timestamp"`
	Text       string  `json:"text"`
	Type       string  `json:"type"`       // decision | discussion | action-item
	Importance string  `json:"importance"` // high | medium | low
}

// CodeReference anchors a highlight to a location in the codebase.
type CodeReference struct {
	FileName   string `json:"file_name"`
	LineNumber int    `json:"line_number,omitempty"`
	Context    string `json:"context,omitempty"`
}

// GenerateHighlights extracts decisions, discussion points and action items
// from a pairing session transcript. Missing type/importance fields in the
// model output are defaulted, and IDs are assigned positionally.
func (c *Client) GenerateHighlights(ctx context.Context, transcript string, refs []CodeReference) ([]Highlight, error) {
	var refsText string
	if len(refs) > 0 {
		var lines []string
		for _, ref := range refs {
			loc := ref.FileName
			if ref.LineNumber > 0 {
				loc = fmt.Sprintf("%s:%d", ref.FileName, ref.LineNumber)
			}
			lines = append(lines, fmt.Sprintf("- %s - %s", loc, ref.Context))
		}
		refsText = "\n\nCode references mentioned:\n" + strings.Join(lines, "\n")
	}

	prompt := fmt.Sprintf(`Analyze this pair programming session transcript and extract key highlights:

1. **Decisions**: Important technical decisions made
2. **Discussion**: Key discussion points or debates
3. **Action Items**: Tasks or follow-ups mentioned

Transcript:
%s%s

Return a JSON array of highlights:
[
  {
    "text": "summary of the highlight",
    "type": "decision" | "discussion" | "action-item",
    "importance": "high" | "medium" | "low",
    "timestamp": 0.0
  }
]

Only return valid JSON array, no markdown formatting.`, transcript, refsText)

	var out []Highlight
	if err := c.GenerateJSON(ctx, prompt, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].ID = fmt.Sprintf("highlight-%d", i)
		if out[i].Type == "" {
			out[i].Type = "discussion"
		}
		if out[i].Importance == "" {
			out[i].Importance = "medium"
		}
	}
	return out, nil
}

// GenerateSessionSummary produces a short prose summary of a pairing session
// transcript.
func (c *Client) GenerateSessionSummary(ctx context.Context, transcript string) (string, error) {
	prompt := fmt.Sprintf(`Summarize this pair programming session transcript in 2-3 paragraphs. Focus on:
- What was discussed
- Key decisions made
- Main outcomes or next steps

Transcript:
%s`, transcript)
	return c.GenerateText(ctx, prompt)
}
