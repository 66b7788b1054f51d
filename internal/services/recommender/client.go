// Package recommender asks an OpenAI-compatible chat completions endpoint
// for media suggestions based on the user's viewing preferences. The
// contract is deliberately narrow: the model must answer with bare
// "Title (Year)" lines and nothing else.
package recommender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"recomarr/internal/models"
)

const maxSuggestions = 12

// Preferences is the structured payload the prompt is built from
type Preferences struct {
	TopRated         []string // "Title (Year) - 9/10"
	PartiallyWatched []string
	Bookmarked       []string
	NotInterested    []string
}

// Client talks to an OpenAI-compatible chat completions API
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a new recommender client
func NewClient(apiKey, baseURL, model string, logger *logrus.Logger) *Client {
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Suggest returns an ordered list of raw "Title (Year)" suggestion lines
func (c *Client) Suggest(ctx context.Context, prefs Preferences, kind models.MediaKind, count int) ([]string, error) {
	if count <= 0 || count > maxSuggestions {
		count = maxSuggestions
	}

	prompt := buildPrompt(prefs, kind, count)

	reqBody, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a movie and TV show recommendation engine. Respond only with the requested list, no explanations."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.8,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recommender request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("recommender returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if chatResp.Error != nil {
		return nil, fmt.Errorf("recommender error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("recommender returned no choices")
	}

	lines := parseLines(chatResp.Choices[0].Message.Content, count)
	c.logger.WithField("count", len(lines)).Debug("Received suggestions")
	return lines, nil
}

// buildPrompt assembles the preference payload into the prompt
func buildPrompt(prefs Preferences, kind models.MediaKind, count int) string {
	var b strings.Builder

	contentKind := "movies and TV series"
	switch kind {
	case models.KindMovie:
		contentKind = "movies"
	case models.KindSeries:
		contentKind = "TV series"
	}

	fmt.Fprintf(&b, "Recommend exactly %d %s the user would likely enjoy.\n\n", count, contentKind)

	writeSection(&b, "Titles the user watched and rated:", prefs.TopRated)
	writeSection(&b, "Titles the user started but has not finished:", prefs.PartiallyWatched)
	writeSection(&b, "Titles already on the user's lists:", prefs.Bookmarked)
	writeSection(&b, "Titles the user is NOT interested in:", prefs.NotInterested)

	b.WriteString("Rules:\n")
	b.WriteString("- Do NOT recommend any title listed above.\n")
	b.WriteString("- Answer with one recommendation per line, formatted exactly as: Title (Year)\n")
	b.WriteString("- Use the original English title.\n")
	b.WriteString("- No numbering, no commentary, no extra text.\n")

	return b.String()
}

func writeSection(b *strings.Builder, header string, lines []string) {
	if len(lines) == 0 {
		return
	}
	b.WriteString(header)
	b.WriteString("\n")
	for _, line := range lines {
		fmt.Fprintf(b, "- %s\n", line)
	}
	b.WriteString("\n")
}

// parseLines extracts non-empty suggestion lines, capped at count
func parseLines(content string, count int) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) >= count {
			break
		}
	}
	return lines
}
