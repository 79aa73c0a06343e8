package assembler

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// AudioProcessor abstracts the codec work so assembly logic is testable
// without ffmpeg installed.
type AudioProcessor interface {
	// Duration returns the clip length in seconds.
	Duration(path string) (float64, error)
	// MeanVolume returns the clip's mean volume in dBFS.
	MeanVolume(path string) (float64, error)
	// Process writes a copy of in to out with a gain adjustment (dB, 0 =
	// no change) and symmetric fade-in/fade-out of fadeSec seconds.
	Process(in, out string, gainDB, fadeSec, durationSec float64) error
	// Concat joins the given files in order into out.
	Concat(files []string, out string) error
}

// FFmpegProcessor implements AudioProcessor by shelling out to
// ffmpeg/ffprobe.
type FFmpegProcessor struct{}

func NewFFmpegProcessor() *FFmpegProcessor {
	return &FFmpegProcessor{}
}

// Duration uses ffprobe to get accurate audio duration in seconds
func (p *FFmpegProcessor) Duration(path string) (float64, error) {
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

var meanVolumeRe = regexp.MustCompile(`mean_volume:\s*(-?[0-9.]+)\s*dB`)

// MeanVolume runs ffmpeg's volumedetect filter and parses its report
func (p *FFmpegProcessor) MeanVolume(path string) (float64, error) {
	cmd := exec.Command("ffmpeg",
		"-i", path,
		"-af", "volumedetect",
		"-f", "null", "-",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("volumedetect: %w", err)
	}
	return ParseMeanVolume(string(out))
}

// ParseMeanVolume extracts the mean_volume value from volumedetect output
func ParseMeanVolume(output string) (float64, error) {
	m := meanVolumeRe.FindStringSubmatch(output)
	if m == nil {
		return 0, fmt.Errorf("no mean_volume in volumedetect output")
	}
	return strconv.ParseFloat(m[1], 64)
}

func (p *FFmpegProcessor) Process(in, out string, gainDB, fadeSec, durationSec float64) error {
	var filters []string
	if gainDB != 0 {
		filters = append(filters, fmt.Sprintf("volume=%.2fdB", gainDB))
	}
	if fadeSec > 0 {
		filters = append(filters,
			fmt.Sprintf("afade=t=in:st=0:d=%.2f", fadeSec),
			fmt.Sprintf("afade=t=out:st=%.2f:d=%.2f", durationSec-fadeSec, fadeSec),
		)
	}

	args := []string{"-y", "-i", in}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}
	args = append(args, "-c:a", "libmp3lame", "-q:a", "2", out)

	cmd := exec.Command("ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg process: %w", err)
	}
	return nil
}

// Concat joins segments via an ffmpeg concat list file
func (p *FFmpegProcessor) Concat(files []string, out string) error {
	listFile := filepath.Join(filepath.Dir(out), "concat_list.txt")
	var lines []string
	for _, f := range files {
		lines = append(lines, fmt.Sprintf("file '%s'", f))
	}
	if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return err
	}

	cmd := exec.Command("ffmpeg", "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		out,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg concat: %w", err)
	}
	return nil
}
