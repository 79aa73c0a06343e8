package video

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"lofi-playlist-pipeline/config"
)

// Composer muxes the combined audio with a static background image
type Composer struct {
	cfg *config.Config
}

// New creates a new Composer
func New(cfg *config.Config) *Composer {
	return &Composer{cfg: cfg}
}

// Run encodes a static-image video the length of the audio track.
// Failure here is fatal to the run.
func (c *Composer) Run(ctx context.Context, audioPath, imagePath, outputPath string) error {
	dur, err := audioDuration(audioPath)
	if err != nil {
		return fmt.Errorf("probe audio duration: %w", err)
	}

	log.Printf("[video] Composing %.1fs video at %dp / %d fps...", dur, c.cfg.Video.Height, c.cfg.Video.FPS)

	args := BuildMuxArgs(imagePath, audioPath, outputPath, dur, c.cfg.Video.Height, c.cfg.Video.FPS)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg mux: %w", err)
	}

	log.Printf("[video] ✅ Video saved as %s", outputPath)
	return nil
}

// BuildMuxArgs constructs the ffmpeg invocation for looping one image over
// the full audio duration.
func BuildMuxArgs(imagePath, audioPath, outputPath string, durationSec float64, height, fps int) []string {
	return []string{
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-vf", fmt.Sprintf("scale=-2:%d", height),
		"-r", strconv.Itoa(fps),
		"-c:v", "libx264",
		"-preset", "fast",
		"-tune", "stillimage",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-t", fmt.Sprintf("%.3f", durationSec),
		"-shortest",
		"-movflags", "+faststart",
		outputPath,
	}
}

// audioDuration uses ffprobe to get accurate audio duration in seconds
func audioDuration(path string) (float64, error) {
	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
}
