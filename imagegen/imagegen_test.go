package imagegen

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"lofi-playlist-pipeline/config"
	"lofi-playlist-pipeline/types"
)

func testEntries() []types.PromptEntry {
	return []types.PromptEntry{
		{Title: "A", Prompt: "A mellow lofi track with warm electric piano."},
		{Title: "B", Prompt: "Dreamy saxophone over ambient city sounds."},
		{Title: "C", Prompt: "Upbeat brushes and bright trumpet lines."},
	}
}

func TestExtractMoods(t *testing.T) {
	moods := ExtractMoods(testEntries())
	want := []string{"mellow", "warm", "dreamy", "ambient"}
	if !reflect.DeepEqual(moods, want) {
		t.Fatalf("got %v, want %v", moods, want)
	}
}

func TestExtractMoods_WholeWordOnly(t *testing.T) {
	entries := []types.PromptEntry{
		{Prompt: "warmth and calmness"}, // neither is a whole-word match
		{Prompt: "a CALM evening"},      // case-insensitive match
	}
	moods := ExtractMoods(entries)
	if !reflect.DeepEqual(moods, []string{"calm"}) {
		t.Fatalf("got %v, want [calm]", moods)
	}
}

func newTestSynthesizer(cfg *config.Config, seed int64) *Synthesizer {
	s := New(cfg)
	s.rng = rand.New(rand.NewSource(seed))
	s.sleep = func(time.Duration) {}
	return s
}

func TestBuildPrompt(t *testing.T) {
	s := newTestSynthesizer(&config.Config{}, 7)
	prompt := s.BuildPrompt(testEntries())

	for _, want := range baseElements {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing base element %q", want)
		}
	}
	if !strings.Contains(prompt, "atmosphere") {
		t.Error("prompt missing mood atmosphere clause")
	}

	// Two cosmic and two café elements must be present
	if countContained(prompt, cosmicElements) != 2 {
		t.Errorf("want exactly 2 cosmic elements in prompt:\n%s", prompt)
	}
	if countContained(prompt, cafeElements) != 2 {
		t.Errorf("want exactly 2 café elements in prompt:\n%s", prompt)
	}

	// Same seed, same prompt
	s2 := newTestSynthesizer(&config.Config{}, 7)
	if s2.BuildPrompt(testEntries()) != prompt {
		t.Error("prompt not deterministic for a fixed seed")
	}
}

func countContained(s string, pool []string) int {
	n := 0
	for _, e := range pool {
		if strings.Contains(s, e) {
			n++
		}
	}
	return n
}

func TestGenerate_DownloadsImage(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/image.jpg" {
			w.Write([]byte("fake-jpeg-bytes"))
			return
		}
		w.Write([]byte(`{"data":[{"url":"` + srv.URL + `/image.jpg"}]}`))
	}))
	defer srv.Close()

	t.Setenv("OPENAI_API_KEY", "test-key")

	cfg := &config.Config{Image: config.ImageConfig{MaxRetries: 3}}
	s := newTestSynthesizer(cfg, 1)
	s.apiURL = srv.URL

	photos := t.TempDir()
	path, err := s.Generate(context.Background(), testEntries(), photos)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if filepath.Base(path) != "background.jpg" {
		t.Errorf("got %s, want background.jpg", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "fake-jpeg-bytes" {
		t.Errorf("image content wrong: %q, %v", data, err)
	}
}

func TestGenerate_FallsBackToBundledImage(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer srv.Close()

	t.Setenv("OPENAI_API_KEY", "test-key")

	fallback := filepath.Join(t.TempDir(), "default_background.jpg")
	if err := os.WriteFile(fallback, []byte("bundled-default"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{Image: config.ImageConfig{MaxRetries: 3, Fallback: fallback}}
	s := newTestSynthesizer(cfg, 1)
	s.apiURL = srv.URL

	photos := t.TempDir()
	path, err := s.Generate(context.Background(), testEntries(), photos)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 3 {
		t.Errorf("made %d attempts, want 3", got)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "bundled-default" {
		t.Errorf("fallback not copied, got %q", data)
	}
}

func TestGenerate_NoFallbackIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer srv.Close()

	t.Setenv("OPENAI_API_KEY", "test-key")

	cfg := &config.Config{Image: config.ImageConfig{MaxRetries: 2, Fallback: "/nonexistent/default.jpg"}}
	s := newTestSynthesizer(cfg, 1)
	s.apiURL = srv.URL

	if _, err := s.Generate(context.Background(), testEntries(), t.TempDir()); err == nil {
		t.Fatal("expected fatal error with no fallback asset")
	}
}
