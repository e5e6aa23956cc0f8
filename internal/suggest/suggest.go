// internal/suggest/suggest.go
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github-project-tracker/internal/apperrors"
	"github-project-tracker/internal/model"
	"github-project-tracker/internal/store"
)

const (
	defaultModel    = "gpt-4o-mini"
	promptIssues    = 10
	promptTasks     = 20
	requestTimeout  = 30 * time.Second
	completionsPath = "/chat/completions"
)

// Suggestion is one AI-proposed next task.
type Suggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Service asks an OpenAI-compatible chat backend for next-task suggestions
// built from a project's open issues and current task list. A missing API
// key disables the service.
type Service struct {
	store   store.Store
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// NewService creates a suggestion service. baseURL is the API root
// (e.g. https://api.openai.com/v1).
func NewService(s store.Store, baseURL, apiKey, chatModel string, logger *slog.Logger) *Service {
	if chatModel == "" {
		chatModel = defaultModel
	}
	return &Service{
		store:   s,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   chatModel,
		client:  &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Suggest returns task suggestions for a project. Backend outages surface as
// ErrAIBackendUnavailable so callers can map them to a stable error code.
func (s *Service) Suggest(ctx context.Context, projectID int64) ([]Suggestion, error) {
	if s.apiKey == "" {
		return nil, apperrors.ErrAIBackendUnavailable
	}

	issues, err := s.store.ListOpenIssues(ctx, projectID, promptIssues)
	if err != nil {
		return nil, err
	}
	taskList, err := s.store.ListTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}

	reply, err := s.complete(ctx, buildPrompt(issues, taskList))
	if err != nil {
		return nil, err
	}

	var suggestions []Suggestion
	if err := json.Unmarshal([]byte(extractJSON(reply)), &suggestions); err != nil {
		s.logger.Warn("Could not parse suggestion reply", "error", err)
		return nil, fmt.Errorf("parsing suggestions: %w", err)
	}
	return suggestions, nil
}

func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a project planning assistant. Reply with a JSON array of objects with fields \"title\" and \"description\". No prose."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperrors.ErrAIBackendUnavailable
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.ErrAIBackendUnavailable
	}

	if resp.StatusCode >= 500 {
		return "", apperrors.ErrAIBackendUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		var envelope chatError
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
			return "", fmt.Errorf("AI backend error (%d): %s", resp.StatusCode, envelope.Error.Message)
		}
		return "", fmt.Errorf("AI backend error (%d)", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decoding AI response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("AI backend returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// buildPrompt summarizes open issues and existing tasks so the model
// suggests work that is not already tracked.
func buildPrompt(issues []model.Issue, taskList []model.Task) string {
	var b strings.Builder
	b.WriteString("Suggest up to 5 next tasks for this software project.\n\nOpen issues:\n")
	if len(issues) == 0 {
		b.WriteString("(none)\n")
	}
	for _, issue := range issues {
		fmt.Fprintf(&b, "- #%d %s\n", issue.Number, issue.Title)
	}
	b.WriteString("\nExisting tasks:\n")
	if len(taskList) == 0 {
		b.WriteString("(none)\n")
	}
	n := 0
	for _, t := range taskList {
		if t.Status == model.TaskCancelled {
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s\n", t.Status, t.Title)
		n++
		if n == promptTasks {
			break
		}
	}
	return b.String()
}

// extractJSON strips an optional markdown code fence around the reply.
func extractJSON(reply string) string {
	trimmed := strings.TrimSpace(reply)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
