package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Grace-Shao/aiatl2025/backend/genai"
	"github.com/Grace-Shao/aiatl2025/backend/githubapi"
)

// HandleOrchestrate routes an assistant prompt to the matching agent.
func (h *Handlers) HandleOrchestrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Prompt  string `json:"prompt"`
		Quarter int    `json:"quarter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Prompt == "" {
		writeError(w, http.StatusBadRequest, "missing prompt")
		return
	}
	result, err := h.orch.HandlePrompt(r.Context(), body.Prompt, body.Quarter)
	if errors.Is(err, genai.ErrUnknownTask) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

// commitInput mirrors the commit fields the PR generator prompts with.
type commitInput struct {
	SHA     string   `json:"sha"`
	Author  string   `json:"author"`
	Date    string   `json:"date"`
	Message string   `json:"message"`
	Files   []string `json:"files"`
}

// HandlePRGenerate drafts a pull request from commit history, or from a raw
// diff when one is supplied, using the generative API. On model failure it
// falls back to a mechanical draft built from the commit messages, so the
// endpoint still returns something usable.
func (h *Handlers) HandlePRGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Commits []commitInput `json:"commits"`
		Diff    string        `json:"diff"`
		Base    string        `json:"base"`
		Head    string        `json:"head"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || (len(body.Commits) == 0 && body.Diff == "") {
		writeError(w, http.StatusBadRequest, "commits or diff are required")
		return
	}
	if body.Base == "" {
		body.Base = "main"
	}
	if body.Head == "" {
		body.Head = "feature"
	}

	var prompt string
	if body.Diff != "" {
		prompt = diffPrompt(body.Diff, body.Commits, body.Base, body.Head)
	} else {
		prompt = commitsPrompt(body.Commits, body.Base, body.Head)
	}

	var draft githubapi.PRDraft
	if err := h.genai.GenerateJSON(r.Context(), prompt, &draft); err != nil {
		draft = fallbackDraft(body.Commits, body.Base, body.Head)
	}
	if draft.Base == "" {
		draft.Base = body.Base
	}
	if draft.Head == "" {
		draft.Head = body.Head
	}
	writeJSON(w, http.StatusOK, draft)
}

const prOutputSchema = `Return JSON:
{
  "title": "PR title",
  "body": "Detailed PR description in markdown",
  "base": %q,
  "head": %q,
  "files": ["list", "of", "files"],
  "comments": [
    {"path": "file/path.go", "line": 42, "body": "Review comment about this line"}
  ]
}

Only return valid JSON, no markdown formatting.`

func commitsPrompt(commits []commitInput, base, head string) string {
	var lines []string
	for _, c := range commits {
		sha := c.SHA
		if len(sha) > 7 {
			sha = sha[:7]
		}
		lines = append(lines, fmt.Sprintf("Commit: %s\nAuthor: %s\nDate: %s\nMessage: %s\nFiles: %s",
			sha, c.Author, c.Date, c.Message, strings.Join(c.Files, ", ")))
	}
	return fmt.Sprintf(`You are a code review assistant. Analyze these git commits and generate a comprehensive Pull Request.

Commits:
%s

Generate a detailed PR with:
1. Title: clear, descriptive (max 72 chars)
2. Description: overview of changes, what problem this solves, key changes made, testing notes
3. Code review comments: specific, actionable comments on the code changes
4. Files changed: list of all files modified

`+prOutputSchema, strings.Join(lines, "\n\n"), base, head)
}

const maxDiffChars = 8000

func diffPrompt(diff string, commits []commitInput, base, head string) string {
	var messages []string
	for _, c := range commits {
		messages = append(messages, c.Message)
	}
	if len(diff) > maxDiffChars {
		diff = diff[:maxDiffChars] + "\n... (truncated)"
	}
	return fmt.Sprintf(`Analyze this git diff and commit messages to generate a Pull Request.

Commit Messages:
%s

Diff:
%s

Generate a comprehensive PR with:
1. Clear title
2. Detailed description explaining the changes
3. Code review comments on specific lines
4. List of files changed

`+prOutputSchema, strings.Join(messages, "\n"), diff, base, head)
}

func fallbackDraft(commits []commitInput, base, head string) githubapi.PRDraft {
	title := "Changes"
	if len(commits) > 0 && commits[0].Message != "" {
		title = commits[0].Message
	}
	var bullets, files []string
	for _, c := range commits {
		bullets = append(bullets, "- "+c.Message)
		files = append(files, c.Files...)
	}
	return githubapi.PRDraft{
		Title: title,
		Body:  "## Changes\n\n" + strings.Join(bullets, "\n"),
		Base:  base,
		Head:  head,
		Files: files,
	}
}

// HandlePRPublish opens the draft PR on the hosting provider.
func (h *Handlers) HandlePRPublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Owner string            `json:"owner"`
		Repo  string            `json:"repo"`
		PR    githubapi.PRDraft `json:"pr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Owner == "" || body.Repo == "" || body.PR.Title == "" {
		writeError(w, http.StatusBadRequest, "owner, repo and pr are required")
		return
	}
	created, err := h.github.CreateDraftPR(r.Context(), body.Owner, body.Repo, body.PR)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, created)
}
