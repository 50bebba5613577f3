package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Grace-Shao/aiatl2025/backend/telemetry"
)

// Task names for the keyword router.
const (
	TaskMeme       = "memeGenerator"
	TaskFactCheck  = "factChecker"
	TaskEmail      = "emailSender"
	TaskOpinion    = "opinionGenerator"
	TaskStatistics = "gameStatistics"
)

// ErrUnknownTask is returned when a prompt matches no agent keywords.
var ErrUnknownTask = fmt.Errorf("unknown task in prompt")

// EmailSender delivers a composed email. Satisfied by email.Client.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
}

// GameDataFunc returns the current game data blob used as agent context.
type GameDataFunc func(ctx context.Context) (any, error)

// Orchestrator routes chat prompts mentioning the assistant to the matching
// agent. Routing is plain keyword matching; no model call is spent on it.
type Orchestrator struct {
	GenAI    *Client
	Email    EmailSender
	EmailTo  string
	GameData GameDataFunc
}

// Result is what an agent produced for a prompt.
type Result struct {
	Task string `json:"task"`
	Text string `json:"text"`
}

// ParsePrompt maps a prompt to a task name. Matching is case-insensitive and
// ordered, so "fact check this meme" routes to the meme agent.
func ParsePrompt(prompt string) (string, error) {
	p := strings.ToLower(prompt)
	switch {
	case strings.Contains(p, "meme"):
		return TaskMeme, nil
	case strings.Contains(p, "fact check"):
		return TaskFactCheck, nil
	case strings.Contains(p, "email"), strings.Contains(p, "send") && strings.Contains(p, "friend"):
		return TaskEmail, nil
	case strings.Contains(p, "opinion"), strings.Contains(p, "prediction"):
		return TaskOpinion, nil
	case strings.Contains(p, "stat"), strings.Contains(p, "yard"), strings.Contains(p, "score"),
		strings.Contains(p, "how many"), strings.Contains(p, "rush"), strings.Contains(p, "pass"):
		return TaskStatistics, nil
	default:
		return "", ErrUnknownTask
	}
}

// HandlePrompt parses, routes and executes a prompt. quarter scopes the
// statistics agent to data available so far; pass 4 for full-game context.
func (o *Orchestrator) HandlePrompt(ctx context.Context, prompt string, quarter int) (Result, error) {
	telemetry.Inc(telemetry.OrchestratorRequests)
	task, err := ParsePrompt(prompt)
	if err != nil {
		return Result{}, err
	}
	var text string
	switch task {
	case TaskMeme:
		text, err = o.meme(ctx, prompt)
	case TaskFactCheck:
		text, err = o.factCheck(ctx, prompt)
	case TaskEmail:
		text, err = o.sendEmail(ctx, prompt)
	case TaskOpinion:
		text, err = o.opinion(ctx, prompt)
	case TaskStatistics:
		text, err = o.statistics(ctx, prompt, quarter)
	}
	if err != nil {
		return Result{}, fmt.Errorf("agent %s: %w", task, err)
	}
	return Result{Task: task, Text: text}, nil
}

func (o *Orchestrator) gameDataJSON(ctx context.Context) string {
	if o.GameData == nil {
		return "{}"
	}
	data, err := o.GameData(ctx)
	if err != nil {
		return "{}"
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (o *Orchestrator) meme(ctx context.Context, prompt string) (string, error) {
	return o.GenAI.GenerateText(ctx, fmt.Sprintf(
		"Write a funny sports meme caption about: %s. Make it humorous and relatable for sports fans. Plain text only, one or two lines.", prompt))
}

func (o *Orchestrator) factCheck(ctx context.Context, prompt string) (string, error) {
	return o.GenAI.GenerateText(ctx, fmt.Sprintf(`You are a sports fact-checker. Use the following game data to fact-check this statement:

Statement: %s

Game Data: %s

Provide a SHORT, BRIEF fact-check (2-3 sentences MAX) in PLAIN TEXT (NO MARKDOWN):
- Use %s for TRUE or %s for FALSE
- NO asterisks, NO bold formatting, NO markdown syntax
- Keep it concise and cite specific numbers from the data
- Write naturally like a tweet`, prompt, o.gameDataJSON(ctx), "✅", "❌"))
}

func (o *Orchestrator) opinion(ctx context.Context, prompt string) (string, error) {
	return o.GenAI.GenerateText(ctx, fmt.Sprintf(`You are a sports analyst giving opinions and predictions. Use the following game data to provide an informed opinion:

Question: %s

Game Data: %s

Provide a SHORT, BRIEF analysis (3-4 sentences MAX) in PLAIN TEXT (NO MARKDOWN):
- Start with a clear prediction
- NO asterisks, NO bold formatting, NO bullet points, NO markdown syntax
- Write naturally like a tweet with line breaks for readability
- Keep it punchy and engaging`, prompt, o.gameDataJSON(ctx)))
}

func (o *Orchestrator) statistics(ctx context.Context, prompt string, quarter int) (string, error) {
	if quarter <= 0 || quarter > 4 {
		quarter = 4
	}
	temporal := "This is the final game data (end of Quarter 4)."
	if quarter < 4 {
		temporal = fmt.Sprintf("IMPORTANT: This is during Quarter %d of the game. You can ONLY use data available up to and during Quarter %d. Do NOT provide information about future quarters or final game results.", quarter, quarter)
	}
	return o.GenAI.GenerateText(ctx, fmt.Sprintf(`You are a sports statistics analyst. Use the following game data to answer the statistics question:

%s

Question: %s

Game Data: %s

Provide a SHORT, CONCISE answer (2-3 sentences MAX) in PLAIN TEXT (NO MARKDOWN):
- NO asterisks, NO bold formatting, NO markdown syntax
- Cite specific numbers and stats from the data
- Write naturally like a tweet`, temporal, prompt, o.gameDataJSON(ctx)))
}

type emailDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (o *Orchestrator) sendEmail(ctx context.Context, prompt string) (string, error) {
	if o.Email == nil {
		return "", fmt.Errorf("email sender not configured")
	}
	var draft emailDraft
	err := o.GenAI.GenerateJSON(ctx, fmt.Sprintf(`You are composing an exciting email to friends about a live sports game. Use the following game data:

Request: %s

Game Data: %s

Generate an email with:
1. Subject line (exciting and attention-grabbing)
2. Email body (engaging, 3-4 paragraphs highlighting key stats, player performances, and exciting moments)

Format as JSON:
{
  "subject": "your subject here",
  "body": "your email body here"
}

Only return valid JSON, no markdown formatting.`, prompt, o.gameDataJSON(ctx)), &draft)
	if err != nil {
		return "", err
	}
	if draft.Subject == "" || draft.Body == "" {
		return "", fmt.Errorf("model returned incomplete email draft")
	}
	if _, err := o.Email.Send(ctx, o.EmailTo, draft.Subject, draft.Body); err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	preview := draft.Body
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return fmt.Sprintf("Email sent!\n\nSubject: %s\n\nPreview: %s", draft.Subject, preview), nil
}
