package folders

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lofi-playlist-pipeline/types"
)

const maxPromptPrefix = 30

// CreateRunFolders builds the timestamped output tree for one run:
// <root>/<timestamp>/{music,photos,videos,music/segments}
func CreateRunFolders(root string) (types.RunFolders, error) {
	base := filepath.Join(root, time.Now().Format("20060102_150405"))

	f := types.RunFolders{
		Music:         filepath.Join(base, "music"),
		Photos:        filepath.Join(base, "photos"),
		Videos:        filepath.Join(base, "videos"),
		MusicSegments: filepath.Join(base, "music", "segments"),
	}

	for _, dir := range []string{f.Music, f.Photos, f.Videos, f.MusicSegments} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return types.RunFolders{}, err
		}
	}
	return f, nil
}

// CreateFolderForPrompt creates a per-prompt folder under base. The name is
// the sanitized prompt prefix plus a short content hash so that truncated
// prompts cannot collide.
func CreateFolderForPrompt(prompt, base string) (string, error) {
	dir := filepath.Join(base, FolderNameForPrompt(prompt))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// FolderNameForPrompt returns the stable folder name for a prompt:
// <sanitized 30-char prefix>_<8 hex chars of md5>
func FolderNameForPrompt(prompt string) string {
	sum := md5.Sum([]byte(prompt))
	hash := hex.EncodeToString(sum[:])[:8]

	sanitized := sanitize(prompt)
	if len(sanitized) > maxPromptPrefix {
		sanitized = sanitized[:maxPromptPrefix]
	}
	return sanitized + "_" + hash
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			// illegal in file paths, dropped
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
