package songgen

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lofi-playlist-pipeline/config"
	"lofi-playlist-pipeline/types"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Generation: config.GenerationConfig{
			BaseURL:          baseURL,
			ConcurrentLimit:  3,
			PollAttempts:     30,
			PollIntervalSec:  5,
			DownloadRetries:  3,
			DownloadPauseSec: 2,
		},
	}
}

func newGenerator(cfg *config.Config) *Generator {
	g := New(cfg)
	g.sleep = func(time.Duration) {} // no wall-clock waits in tests
	return g
}

// stubService simulates the generation API: every submit yields a fresh
// pair of job IDs, and status/audio behavior is pluggable.
type stubService struct {
	mu      sync.Mutex
	nextJob int

	status    func(id string) jobStatus
	audioCode func(id string) int

	polls     int64
	downloads int64

	srv *httptest.Server
}

func newStubService(t *testing.T) *stubService {
	t.Helper()
	s := &stubService{
		audioCode: func(string) int { return http.StatusOK },
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.nextJob++
		n := s.nextJob
		s.mu.Unlock()
		fmt.Fprintf(w, `[{"id":"job%d-a"},{"id":"job%d-b"}]`, n, n)
	})

	mux.HandleFunc("/api/get", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.polls, 1)
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		parts := make([]string, len(ids))
		for i, id := range ids {
			st := s.status(id)
			parts[i] = fmt.Sprintf(`{"id":%q,"status":%q,"audio_url":%q}`,
				id, st.Status, s.srv.URL+"/audio/"+id)
		}
		fmt.Fprintf(w, "[%s]", strings.Join(parts, ","))
	})

	mux.HandleFunc("/audio/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.downloads, 1)
		id := strings.TrimPrefix(r.URL.Path, "/audio/")
		code := s.audioCode(id)
		if code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		w.Write([]byte("ID3fake-mp3-bytes"))
	})

	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

func TestGenerateAll_TwoEntriesYieldFourVariants(t *testing.T) {
	svc := newStubService(t)
	svc.status = func(id string) jobStatus { return jobStatus{ID: id, Status: statusStreaming} }

	g := newGenerator(testConfig(svc.srv.URL))
	entries := []types.PromptEntry{
		{Title: "Midnight Café", Prompt: "soft saxophone and mellow keys"},
		{Title: "Rainy Window", Prompt: "gentle rain and warm electric piano"},
	}

	songs, err := g.GenerateAll(context.Background(), entries, t.TempDir())
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if len(songs) != 4 {
		t.Fatalf("got %d songs, want 4", len(songs))
	}

	seen := make(map[string]bool)
	for _, song := range songs {
		if !strings.Contains(song.Title, "(Variation A)") && !strings.Contains(song.Title, "(Variation B)") {
			t.Errorf("title %q missing variant suffix", song.Title)
		}
		if seen[song.RemoteID] {
			t.Errorf("duplicate remote ID %s", song.RemoteID)
		}
		seen[song.RemoteID] = true
		if _, err := os.Stat(song.FilePath); err != nil {
			t.Errorf("song file missing: %v", err)
		}
	}
}

func TestGenerateAll_TimeoutYieldsNothing(t *testing.T) {
	svc := newStubService(t)
	svc.status = func(id string) jobStatus { return jobStatus{ID: id, Status: "queued"} }

	g := newGenerator(testConfig(svc.srv.URL))
	entries := []types.PromptEntry{{Title: "Stuck", Prompt: "never finishes"}}

	songs, err := g.GenerateAll(context.Background(), entries, t.TempDir())
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if len(songs) != 0 {
		t.Fatalf("got %d songs from a timed-out entry, want 0", len(songs))
	}
	if got := atomic.LoadInt64(&svc.polls); got != 30 {
		t.Errorf("polled %d times, want 30", got)
	}
}

func TestGenerateAll_PartialReadinessKeepsPolling(t *testing.T) {
	svc := newStubService(t)
	// Variant A is ready immediately, variant B never is
	svc.status = func(id string) jobStatus {
		if strings.HasSuffix(id, "-a") {
			return jobStatus{ID: id, Status: statusStreaming}
		}
		return jobStatus{ID: id, Status: "queued"}
	}

	g := newGenerator(testConfig(svc.srv.URL))
	songs, err := g.GenerateAll(context.Background(),
		[]types.PromptEntry{{Title: "Half", Prompt: "one ready one not"}}, t.TempDir())
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if len(songs) != 0 {
		t.Fatalf("got %d songs, want 0 (partial readiness must not download)", len(songs))
	}
	if atomic.LoadInt64(&svc.downloads) != 0 {
		t.Error("downloads were issued despite partial readiness")
	}
}

func TestGenerateAll_OneFailedDownloadSuppressesPair(t *testing.T) {
	svc := newStubService(t)
	svc.status = func(id string) jobStatus { return jobStatus{ID: id, Status: statusStreaming} }
	svc.audioCode = func(id string) int {
		if strings.HasSuffix(id, "-b") {
			return http.StatusInternalServerError
		}
		return http.StatusOK
	}

	g := newGenerator(testConfig(svc.srv.URL))
	songs, err := g.GenerateAll(context.Background(),
		[]types.PromptEntry{{Title: "Broken", Prompt: "variant B download fails"}}, t.TempDir())
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if len(songs) != 0 {
		t.Fatalf("got %d songs, want 0 (no partial pairs)", len(songs))
	}
	// Variant A downloads once, variant B exhausts its 3 retries
	if got := atomic.LoadInt64(&svc.downloads); got != 4 {
		t.Errorf("saw %d download requests, want 4", got)
	}
}

func TestGenerateAll_AdmissionGateBoundsConcurrency(t *testing.T) {
	const limit = 2

	var (
		active, maxActive int64
		nextJob           int
		pending           = make(map[string]int) // entry job prefix → downloads remaining
		mu                sync.Mutex
		srv               *httptest.Server
	)

	// An entry counts as "admitted" from its generate call until its
	// second download completes; the peak of that count probes the gate.
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		cur := atomic.AddInt64(&active, 1)
		for {
			prev := atomic.LoadInt64(&maxActive)
			if cur <= prev || atomic.CompareAndSwapInt64(&maxActive, prev, cur) {
				break
			}
		}
		mu.Lock()
		nextJob++
		n := nextJob
		pending[fmt.Sprintf("job%d", n)] = 2
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		fmt.Fprintf(w, `[{"id":"job%d-a"},{"id":"job%d-b"}]`, n, n)
	})
	mux.HandleFunc("/api/get", func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = fmt.Sprintf(`{"id":%q,"status":"streaming","audio_url":%q}`,
				id, srv.URL+"/audio/"+id)
		}
		fmt.Fprintf(w, "[%s]", strings.Join(parts, ","))
	})
	mux.HandleFunc("/audio/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/audio/")
		prefix := strings.TrimSuffix(strings.TrimSuffix(id, "-a"), "-b")
		w.Write([]byte("ID3fake"))
		mu.Lock()
		pending[prefix]--
		done := pending[prefix] == 0
		mu.Unlock()
		if done {
			atomic.AddInt64(&active, -1)
		}
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Generation.ConcurrentLimit = limit
	g := newGenerator(cfg)

	var entries []types.PromptEntry
	for i := 0; i < 6; i++ {
		entries = append(entries, types.PromptEntry{
			Title:  fmt.Sprintf("Song %d", i),
			Prompt: fmt.Sprintf("prompt number %d", i),
		})
	}

	songs, err := g.GenerateAll(context.Background(), entries, t.TempDir())
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if len(songs) != 12 {
		t.Fatalf("got %d songs, want 12", len(songs))
	}
	if got := atomic.LoadInt64(&maxActive); got > limit {
		t.Fatalf("observed %d concurrently admitted entries, limit is %d", got, limit)
	}
}

func TestGenerateAll_BadSubmitResponseSkipsEntry(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"only-one"}]`) // fewer than two variants
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := newGenerator(testConfig(srv.URL))
	songs, err := g.GenerateAll(context.Background(),
		[]types.PromptEntry{{Title: "Odd", Prompt: "malformed submit response"}}, t.TempDir())
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if len(songs) != 0 {
		t.Fatalf("got %d songs, want 0", len(songs))
	}
}
