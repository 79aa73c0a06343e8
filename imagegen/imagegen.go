package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lofi-playlist-pipeline/config"
	"lofi-playlist-pipeline/types"
)

// moodVocabulary is the closed set of adjectives lifted verbatim from
// prompt text into the image instruction.
var moodVocabulary = map[string]bool{
	"mellow": true, "warm": true, "soft": true, "gentle": true,
	"relaxed": true, "smooth": true, "dreamy": true, "ambient": true,
	"calm": true, "serene": true, "peaceful": true, "tranquil": true,
	"soothing": true,
}

var baseElements = []string{
	"cozy café interior",
	"warm ambient lighting",
	"large windows",
}

var cosmicElements = []string{
	"galaxy visible through windows",
	"floating nebulas in the distance",
	"gentle cosmic dust particles in the air",
	"aurora-like lights",
	"stars twinkling through glass ceiling",
	"ethereal space phenomena",
	"spiral galaxy reflections",
	"cosmic fog wisps",
	"floating constellation patterns",
	"subtle northern lights effect",
}

var cafeElements = []string{
	"vintage record player",
	"steaming coffee cup",
	"potted plants",
	"wooden furniture",
	"soft Edison bulbs",
	"exposed brick walls",
	"hanging pendant lights",
	"vinyl records on walls",
	"cozy reading nook",
	"vintage jazz posters",
}

// Synthesizer generates the background image for the video
type Synthesizer struct {
	cfg        *config.Config
	apiURL     string
	httpClient *http.Client
	rng        *rand.Rand
	sleep      func(time.Duration)
}

// New creates a production Synthesizer
func New(cfg *config.Config) *Synthesizer {
	return &Synthesizer{
		cfg:        cfg,
		apiURL:     "https://api.openai.com/v1/images/generations",
		httpClient: &http.Client{Timeout: 120 * time.Second},
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:      time.Sleep,
	}
}

type imageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate builds a themed prompt from the song prompts, requests an image
// and stores it in photosDir. On repeated failure it falls back to the
// bundled default image; a missing fallback is fatal.
func (s *Synthesizer) Generate(ctx context.Context, entries []types.PromptEntry, photosDir string) (string, error) {
	imagePrompt := s.BuildPrompt(entries)
	imagePath := filepath.Join(photosDir, "background.jpg")

	log.Printf("[imagegen] Requesting background image: %q", truncate(imagePrompt, 80))

	var err error
	for attempt := 1; attempt <= s.cfg.Image.MaxRetries; attempt++ {
		err = s.generateOnce(ctx, imagePrompt, imagePath)
		if err == nil {
			log.Printf("[imagegen] ✅ Background image saved as %s", imagePath)
			return imagePath, nil
		}
		log.Printf("[imagegen] Attempt %d/%d failed: %v", attempt, s.cfg.Image.MaxRetries, err)
		if attempt < s.cfg.Image.MaxRetries {
			s.sleep(5 * time.Second)
		}
	}

	fallback := s.cfg.Image.Fallback
	if _, statErr := os.Stat(fallback); statErr != nil {
		return "", fmt.Errorf("image generation failed and no fallback image at %s: %w", fallback, err)
	}

	log.Println("[imagegen] Using default background image")
	if err := copyFile(fallback, imagePath); err != nil {
		return "", fmt.Errorf("copy fallback image: %w", err)
	}
	return imagePath, nil
}

func (s *Synthesizer) generateOnce(ctx context.Context, prompt, imagePath string) error {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("OPENAI_API_KEY not set")
	}

	reqBody := imageRequest{
		Model:   s.cfg.Image.Model,
		Prompt:  prompt,
		N:       1,
		Size:    s.cfg.Image.Size,
		Quality: s.cfg.Image.Quality,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var imgResp imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&imgResp); err != nil {
		return fmt.Errorf("decode image response: %w", err)
	}
	if imgResp.Error != nil {
		return fmt.Errorf("image service error: %s", imgResp.Error.Message)
	}
	if len(imgResp.Data) == 0 || imgResp.Data[0].URL == "" {
		return fmt.Errorf("image response has no URL")
	}

	return s.downloadImage(ctx, imgResp.Data[0].URL, imagePath)
}

func (s *Synthesizer) downloadImage(ctx context.Context, imageURL, imagePath string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d downloading image", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return os.WriteFile(imagePath, data, 0644)
}

// BuildPrompt composes the image instruction from the fixed element pools,
// detected moods, and one sample song prompt for stylistic grounding.
func (s *Synthesizer) BuildPrompt(entries []types.PromptEntry) string {
	elements := append([]string{}, baseElements...)

	if moods := ExtractMoods(entries); len(moods) > 0 {
		if len(moods) > 3 {
			moods = moods[:3]
		}
		elements = append(elements, fmt.Sprintf("with %s atmosphere", strings.Join(moods, ", ")))
	}

	elements = append(elements, sample(s.rng, cosmicElements, 2)...)
	elements = append(elements, sample(s.rng, cafeElements, 2)...)

	samplePrompt := ""
	if len(entries) > 0 {
		samplePrompt = entries[s.rng.Intn(len(entries))].Prompt
	}

	return fmt.Sprintf(
		"Create a dreamy lofi café scene with cosmic elements: %s. "+
			"The atmosphere should match the mood of this music: '%s'. "+
			"Digital art style with rich colors and atmospheric lighting. "+
			"The scene should blend cozy café aesthetics with subtle sci-fi elements. "+
			"4K quality, detailed, atmospheric, perfect for lofi music background. "+
			"Style similar to Studio Ghibli meets cosmic art.",
		strings.Join(elements, ", "), samplePrompt,
	)
}

// ExtractMoods returns the mood adjectives found whole-word in the prompt
// texts, case-insensitive, deduplicated in first-seen order.
func ExtractMoods(entries []types.PromptEntry) []string {
	seen := make(map[string]bool)
	var moods []string
	for _, e := range entries {
		for _, word := range strings.Fields(strings.ToLower(e.Prompt)) {
			word = strings.Trim(word, ".,;:!?'\"()")
			if moodVocabulary[word] && !seen[word] {
				seen[word] = true
				moods = append(moods, word)
			}
		}
	}
	return moods
}

// sample returns n distinct elements from pool in random order
func sample(rng *rand.Rand, pool []string, n int) []string {
	idx := rng.Perm(len(pool))
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = pool[idx[i]]
	}
	return out
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
