package songgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lofi-playlist-pipeline/config"
	"lofi-playlist-pipeline/folders"
	"lofi-playlist-pipeline/types"

	"golang.org/x/sync/errgroup"
)

// statusStreaming is the service's sentinel for "ready to download"
const statusStreaming = "streaming"

// Generator runs audio generation jobs against the suno-style API.
// Each prompt yields two variants; both must download or the pair is dropped.
type Generator struct {
	cfg        *config.Config
	httpClient *http.Client
	sleep      func(time.Duration)

	mu      sync.Mutex
	results []types.SongResult
}

// New creates a new song Generator
func New(cfg *config.Config) *Generator {
	return &Generator{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		sleep:      time.Sleep,
	}
}

type generateJob struct {
	ID string `json:"id"`
}

type jobStatus struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	AudioURL string `json:"audio_url"`
}

// GenerateAll runs every entry under a bounded admission gate and returns
// the flattened results. Per-entry failures are logged and contribute
// nothing; they never abort sibling entries.
func (g *Generator) GenerateAll(ctx context.Context, entries []types.PromptEntry, segmentsDir string) ([]types.SongResult, error) {
	log.Printf("[songgen] Generating %d song(s), concurrency limit %d...", len(entries), g.cfg.Generation.ConcurrentLimit)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Generation.ConcurrentLimit)

	for _, entry := range entries {
		entry := entry // capture
		eg.Go(func() error {
			songs, err := g.generateOne(ctx, entry, segmentsDir)
			if err != nil {
				log.Printf("[songgen] ⚠️  %q: %v", entry.Title, err)
				return nil // continue with other entries
			}
			g.mu.Lock()
			g.results = append(g.results, songs...)
			g.mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	log.Printf("[songgen] ✅ %d variant(s) downloaded", len(g.results))
	return g.results, nil
}

// generateOne runs the full submit → poll → download cycle for one entry
func (g *Generator) generateOne(ctx context.Context, entry types.PromptEntry, segmentsDir string) ([]types.SongResult, error) {
	promptFolder, err := folders.CreateFolderForPrompt(entry.Prompt, segmentsDir)
	if err != nil {
		return nil, fmt.Errorf("create prompt folder: %w", err)
	}

	jobs, err := g.startGeneration(ctx, entry.Prompt)
	if err != nil {
		return nil, fmt.Errorf("start generation: %w", err)
	}
	if len(jobs) < 2 {
		return nil, fmt.Errorf("unexpected response: %d job(s), want 2", len(jobs))
	}

	ids := jobs[0].ID + "," + jobs[1].ID
	log.Printf("[songgen] %q: job IDs %s", entry.Title, ids)

	info, err := g.pollUntilStreaming(ctx, ids)
	if err != nil {
		return nil, err
	}

	return g.downloadPair(ctx, entry, info, promptFolder)
}

func (g *Generator) startGeneration(ctx context.Context, prompt string) ([]generateJob, error) {
	payload := map[string]interface{}{
		"prompt":            prompt,
		"make_instrumental": true,
		"wait_audio":        false,
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.cfg.Generation.BaseURL+"/api/generate", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("generate returned HTTP %d", resp.StatusCode)
	}

	var jobs []generateJob
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return nil, fmt.Errorf("decode generate response: %w", err)
	}
	return jobs, nil
}

// pollUntilStreaming polls both jobs together until both report streaming,
// or the attempt ceiling is reached. Partial readiness keeps polling.
func (g *Generator) pollUntilStreaming(ctx context.Context, ids string) ([]jobStatus, error) {
	interval := time.Duration(g.cfg.Generation.PollIntervalSec) * time.Second

	for attempt := 0; attempt < g.cfg.Generation.PollAttempts; attempt++ {
		info, err := g.getStatus(ctx, ids)
		if err != nil {
			log.Printf("[songgen] Status poll failed for %s: %v", ids, err)
		} else if len(info) >= 2 && info[0].Status == statusStreaming && info[1].Status == statusStreaming {
			return info, nil
		}
		g.sleep(interval)
	}
	return nil, fmt.Errorf("timeout waiting for generation of %s", ids)
}

func (g *Generator) getStatus(ctx context.Context, ids string) ([]jobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", g.cfg.Generation.BaseURL+"/api/get?ids="+ids, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status returned HTTP %d", resp.StatusCode)
	}

	var info []jobStatus
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return info, nil
}

// downloadPair fetches both variants concurrently. If either ultimately
// fails the pair contributes nothing — a half pair is never surfaced.
func (g *Generator) downloadPair(ctx context.Context, entry types.PromptEntry, info []jobStatus, promptFolder string) ([]types.SongResult, error) {
	variants := []string{"A", "B"}
	songs := make([]types.SongResult, 2)
	ok := make([]bool, 2)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			filePath := filepath.Join(promptFolder, info[i].ID+".mp3")
			if err := g.downloadFile(ctx, info[i].AudioURL, filePath); err != nil {
				log.Printf("[songgen] Download failed for %s: %v", info[i].ID, err)
				return
			}
			songs[i] = types.SongResult{
				Title:    fmt.Sprintf("%s (Variation %s)", entry.Title, variants[i]),
				FilePath: filePath,
				RemoteID: info[i].ID,
			}
			ok[i] = true
		}()
	}
	wg.Wait()

	if !ok[0] || !ok[1] {
		return nil, fmt.Errorf("incomplete variant pair")
	}
	return songs, nil
}

func (g *Generator) downloadFile(ctx context.Context, audioURL, filePath string) error {
	pause := time.Duration(g.cfg.Generation.DownloadPauseSec) * time.Second

	var lastErr error
	for attempt := 1; attempt <= g.cfg.Generation.DownloadRetries; attempt++ {
		lastErr = g.tryDownload(ctx, audioURL, filePath)
		if lastErr == nil {
			log.Printf("[songgen] Downloaded: %s", filePath)
			return nil
		}
		log.Printf("[songgen] Attempt %d/%d failed for %s: %v", attempt, g.cfg.Generation.DownloadRetries, filePath, lastErr)
		g.sleep(pause)
	}
	return lastErr
}

func (g *Generator) tryDownload(ctx context.Context, audioURL, filePath string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", audioURL, nil)
	if err != nil {
		return err
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}
