package prompts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"lofi-playlist-pipeline/config"
	"lofi-playlist-pipeline/types"
)

const promptInstruction = `You are tasked with generating unique prompts for smooth lofi jazz songs that will be used with a prompt-to-music generator. Your goal is to create a table of prompts, each with a creative title and a corresponding prompt that describes the style and topic of the song.

Follow these guidelines when creating the prompts:
1. Focus on describing the style of music and the topic or mood of the song.
2. Use genres, sub-genres, and vibes instead of referencing specific artists or songs.
3. Incorporate various instruments, tempos, and atmospheric elements commonly associated with lofi jazz.
4. Include diverse themes and emotions to ensure a wide range of unique prompts.
5. Keep the prompts concise but descriptive, typically 20-40 words each.

Create a table with two columns: "Title" and "Prompt". Generate 15 unique entries, ensuring that each prompt is distinct and creative.

Here are some examples of good prompts:

"A chill lofi jazz track featuring soft saxophone, mellow electric piano, and ambient coffee shop background sounds, evoking the comforting warmth of a late-night café."

"Lofi jazz with a relaxed beat, warm electric piano, and subtle synths, evoking the serene yet vibrant atmosphere of a late-night urban cityscape."

Present your output in the following format:

| Title | Prompt |
|-------|--------|
| [Title 1] | [Prompt 1] |
| [Title 2] | [Prompt 2] |

Ensure that your table contains exactly 15 rows of unique lofi jazz song prompts. Be creative and diverse in your suggestions, covering a wide range of moods, themes, and musical elements within the lofi jazz genre.`

// Source fetches song prompts from the chat-completions service
type Source struct {
	cfg        *config.Config
	baseURL    string
	httpClient *http.Client
}

// New creates a new prompt Source
func New(cfg *config.Config) *Source {
	return &Source{
		cfg:        cfg,
		baseURL:    "https://api.groq.com/openai/v1/chat/completions",
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Get requests one table of song prompts and parses it into entries
func (s *Source) Get(ctx context.Context) ([]types.PromptEntry, error) {
	log.Println("[prompts] Requesting song prompts...")

	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY not set")
	}

	reqBody := chatRequest{
		Model: s.cfg.Prompts.Model,
		Messages: []chatMessage{
			{Role: "user", Content: promptInstruction},
		},
		Temperature: s.cfg.Prompts.Temperature,
		MaxTokens:   1024,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prompts request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBytes, &chatResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if chatResp.Error != nil {
		return nil, fmt.Errorf("service error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("service returned no choices")
	}

	entries := ParseTable(chatResp.Choices[0].Message.Content)
	log.Printf("[prompts] ✅ Parsed %d prompt(s)", len(entries))
	return entries, nil
}

// ParseTable extracts (title, prompt) pairs from a pipe-delimited table.
// Header and separator rows are dropped; any number of rows is accepted.
func ParseTable(content string) []types.PromptEntry {
	var entries []types.PromptEntry
	for _, line := range strings.Split(content, "\n") {
		if !strings.Contains(line, "|") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 3 {
			continue
		}
		title := strings.TrimSpace(parts[1])
		prompt := strings.TrimSpace(parts[2])
		if prompt == "" || prompt == "Prompt" || allDashes(prompt) {
			continue
		}
		entries = append(entries, types.PromptEntry{Title: title, Prompt: prompt})
	}
	return entries
}

func allDashes(s string) bool {
	for _, r := range s {
		if r != '-' {
			return false
		}
	}
	return true
}
