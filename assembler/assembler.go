package assembler

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"lofi-playlist-pipeline/config"
	"lofi-playlist-pipeline/types"

	"github.com/bogem/id3v2"
)

// Assembler shuffles, normalizes and concatenates generated clips into
// one playlist track.
type Assembler struct {
	cfg  *config.Config
	proc AudioProcessor
	rng  *rand.Rand
}

// New creates a production Assembler backed by ffmpeg
func New(cfg *config.Config) *Assembler {
	return &Assembler{
		cfg:  cfg,
		proc: NewFFmpegProcessor(),
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewWithDeps creates an Assembler with an explicit processor and random
// source, for tests and deterministic runs.
func NewWithDeps(cfg *config.Config, proc AudioProcessor, rng *rand.Rand) *Assembler {
	return &Assembler{cfg: cfg, proc: proc, rng: rng}
}

// Run combines the songs in shuffled order into <musicDir>/combined_playlist.mp3
// and returns the path plus the ordered timestamp map. Clips shorter than
// the minimum length or that fail to load are skipped.
func (a *Assembler) Run(songs []types.SongResult, musicDir string) (string, []types.TimestampEntry, error) {
	shuffled := make([]types.SongResult, len(songs))
	copy(shuffled, songs)
	a.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	log.Println("[assembler] Adding songs in random order:")

	var (
		segments   []string
		timestamps []types.TimestampEntry
		offset     float64
	)

	for i, song := range shuffled {
		dur, err := a.proc.Duration(song.FilePath)
		if err != nil {
			log.Printf("[assembler] ⚠️  Skipping %s - could not read: %v", song.Title, err)
			continue
		}
		if dur < a.cfg.Audio.MinClipSec {
			log.Printf("[assembler] Skipping %s - duration too short (%.1f seconds)", song.Title, dur)
			continue
		}

		gain := a.gainFor(song.FilePath)

		segOut := filepath.Join(musicDir, "segments", fmt.Sprintf("playlist_%03d.mp3", i))
		if err := a.proc.Process(song.FilePath, segOut, gain, a.cfg.Audio.FadeSec, dur); err != nil {
			log.Printf("[assembler] ⚠️  Skipping %s - processing failed: %v", song.Title, err)
			continue
		}

		ts := FormatTimestamp(offset)
		timestamps = append(timestamps, types.TimestampEntry{Title: song.Title, Timestamp: ts})
		segments = append(segments, segOut)

		log.Printf("[assembler] %d. Added %s - Position: %s - Duration: %.1fs", len(segments), song.Title, ts, dur)
		offset += dur
	}

	if len(segments) == 0 {
		return "", nil, fmt.Errorf("no usable clips to assemble")
	}

	outPath := filepath.Join(musicDir, "combined_playlist.mp3")
	if err := a.proc.Concat(segments, outPath); err != nil {
		return "", nil, fmt.Errorf("combine playlist: %w", err)
	}

	if err := tagPlaylist(outPath); err != nil {
		log.Printf("[assembler] ⚠️  Could not tag playlist: %v", err)
	}

	log.Printf("[assembler] ✅ Combined audio saved as %s", outPath)
	log.Printf("[assembler] Final playlist duration: %.2f minutes", offset/60)
	log.Printf("[assembler] Total songs added: %d", len(timestamps))
	return outPath, timestamps, nil
}

// gainFor returns the dB adjustment toward the target loudness, or 0 when
// the clip is already within the dead-band (avoids pumping near-target clips).
func (a *Assembler) gainFor(path string) float64 {
	mean, err := a.proc.MeanVolume(path)
	if err != nil {
		log.Printf("[assembler] Loudness probe failed for %s: %v - leaving level as is", filepath.Base(path), err)
		return 0
	}
	diff := a.cfg.Audio.TargetLoudnessDB - mean
	if math.Abs(diff) <= a.cfg.Audio.LoudnessDeadband {
		return 0
	}
	return diff
}

// FormatTimestamp renders a playlist offset, dropping the hour field when
// under one hour: 0 → "00:00", 3661 → "1:01:01".
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// tagPlaylist writes ID3 metadata onto the combined file
func tagPlaylist(path string) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: false})
	if err != nil {
		return err
	}
	defer tag.Close()

	tag.SetTitle("Lofi Jazz Mix " + time.Now().Format("2006-01-02"))
	tag.SetArtist("AI Generated")
	tag.SetGenre("Lofi Jazz")
	return tag.Save()
}
