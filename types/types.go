package types

// PromptEntry is one (title, prompt) pair driving one generation job
type PromptEntry struct {
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}

// SongResult is one downloaded audio variant ready for assembly
type SongResult struct {
	Title    string `json:"title"` // includes the "(Variation A/B)" suffix
	FilePath string `json:"file_path"`
	RemoteID string `json:"remote_id"`
}

// TimestampEntry maps a playlist position to a song title
type TimestampEntry struct {
	Title     string `json:"title"`
	Timestamp string `json:"timestamp"` // "H:MM:SS" or "MM:SS"
}

// RunFolders is the output directory tree for one run
type RunFolders struct {
	Music         string `json:"music"`
	Photos        string `json:"photos"`
	Videos        string `json:"videos"`
	MusicSegments string `json:"music_segments"`
}

// VideoMetadata holds the YouTube upload metadata
type VideoMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CategoryID  string   `json:"category_id"`
	Visibility  string   `json:"visibility"`
}

// PipelineState tracks the full state of one pipeline run
type PipelineState struct {
	RunID       string           `json:"run_id"`
	StartedAt   string           `json:"started_at"`
	CompletedAt string           `json:"completed_at"`
	Prompts     []PromptEntry    `json:"prompts"`
	Songs       []SongResult     `json:"songs"`
	Timestamps  []TimestampEntry `json:"timestamps"`
	AudioFile   string           `json:"audio_file"`
	ImageFile   string           `json:"image_file"`
	VideoFile   string           `json:"video_file"`
	Metadata    *VideoMetadata   `json:"metadata"`
	YouTubeID   string           `json:"youtube_id"`
	YouTubeURL  string           `json:"youtube_url"`
	Error       string           `json:"error,omitempty"`
}
