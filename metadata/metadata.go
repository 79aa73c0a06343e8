package metadata

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

const metadataPrompt = `Create a YouTube video title and description for a lofi jazz music mix. The video contains multiple original AI-generated lofi jazz songs.

Requirements:
1. Title should be catchy and SEO-friendly (max 100 characters)
2. Description should include:
   - Brief introduction about the mix
   - Mention that all music is AI-generated
   - Relevant hashtags
   - A timestamp placeholder [TIMESTAMPS]

Format your response as:
TITLE: [your title here]
DESCRIPTION:
[your description here]`

const promoFooter = "\n\n🔗 Check out the code behind this project: https://github.com/Bentlybro/Automated-Youtube-Music-Generation"

// Generator produces the video title and description via the
// chat-completions service.
type Generator struct {
	cfg        *config.Config
	baseURL    string
	httpClient *http.Client
}

// New creates a new metadata Generator
func New(cfg *config.Config) *Generator {
	return &Generator{
		cfg:        cfg,
		baseURL:    "https://api.groq.com/openai/v1/chat/completions",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Run requests the metadata template and substitutes the timestamp map.
// Parsing is strict: a response without TITLE: or DESCRIPTION: markers is
// an error and the run fails.
func (g *Generator) Run(ctx context.Context, timestamps []types.TimestampEntry) (string, string, error) {
	log.Println("[metadata] Generating video metadata...")

	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		return "", "", fmt.Errorf("GROQ_API_KEY not set")
	}

	reqBody := map[string]interface{}{
		"model": g.cfg.Metadata.Model,
		"messages": []map[string]string{
			{"role": "user", "content": metadataPrompt},
		},
		"max_tokens": 1024,
	}

	bodyBytes, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("metadata request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}

	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(respBytes, &chatResp); err != nil {
		return "", "", fmt.Errorf("parse response: %w", err)
	}
	if chatResp.Error != nil {
		return "", "", fmt.Errorf("service error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", "", fmt.Errorf("service returned no choices")
	}

	title, description, err := ParseResponse(chatResp.Choices[0].Message.Content)
	if err != nil {
		return "", "", err
	}

	description = SubstituteTimestamps(description, timestamps) + promoFooter

	log.Printf("[metadata] ✅ Title: %q", title)
	return title, description, nil
}

// ParseResponse extracts the title and description block from the
// templated service output. First TITLE: line wins.
func ParseResponse(content string) (string, string, error) {
	var title string
	found := false
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "TITLE:") {
			title = strings.TrimSpace(strings.TrimPrefix(line, "TITLE:"))
			found = true
			break
		}
	}
	if !found {
		return "", "", fmt.Errorf("no TITLE: line in metadata response")
	}

	idx := strings.Index(content, "DESCRIPTION:")
	if idx < 0 {
		return "", "", fmt.Errorf("no DESCRIPTION: marker in metadata response")
	}
	description := strings.TrimSpace(content[idx+len("DESCRIPTION:"):])

	return title, description, nil
}

// SubstituteTimestamps replaces the [TIMESTAMPS] placeholder with the
// rendered timestamp list.
func SubstituteTimestamps(description string, timestamps []types.TimestampEntry) string {
	var sb strings.Builder
	sb.WriteString("\nTIMESTAMPS:\n")
	for _, ts := range timestamps {
		sb.WriteString(fmt.Sprintf("%s - %s\n", ts.Timestamp, ts.Title))
	}
	return strings.ReplaceAll(description, "[TIMESTAMPS]", sb.String())
}
