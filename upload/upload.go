package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"lofi-playlist-pipeline/config"
	"lofi-playlist-pipeline/types"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Uploader handles YouTube video upload via Data API v3
type Uploader struct {
	cfg *config.Config
}

// New creates a new Uploader
func New(cfg *config.Config) *Uploader {
	return &Uploader{cfg: cfg}
}

// Run uploads the video and returns its ID. Upload failures are logged and
// reported as an empty ID so the run can finish without crashing.
func (u *Uploader) Run(ctx context.Context, videoPath string, meta *types.VideoMetadata) string {
	videoID, err := u.upload(ctx, videoPath, meta)
	if err != nil {
		log.Printf("[upload] ⚠️  Upload failed: %v", err)
		return ""
	}

	log.Printf("[upload] ✅ Upload successful! Video ID: %s", videoID)
	log.Printf("[upload] Video URL: https://youtube.com/watch?v=%s", videoID)
	return videoID
}

func (u *Uploader) upload(ctx context.Context, videoPath string, meta *types.VideoMetadata) (string, error) {
	log.Println("[upload] Authenticating with YouTube API...")

	client, err := u.oauthClient(ctx)
	if err != nil {
		return "", fmt.Errorf("youtube auth: %w", err)
	}

	svc, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return "", fmt.Errorf("youtube service: %w", err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        meta.Tags,
			CategoryId:  meta.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           meta.Visibility,
			SelfDeclaredMadeForKids: false,
		},
	}

	f, err := os.Open(videoPath)
	if err != nil {
		return "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil {
		log.Printf("[upload] Uploading %q (%.1f MB)...", meta.Title, float64(fi.Size())/1024/1024)
	}

	// Videos.Insert performs a resumable upload when given a Media reader
	call := svc.Videos.Insert([]string{"snippet", "status"}, video)
	call.Media(f)

	uploaded, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("youtube upload: %w", err)
	}
	return uploaded.Id, nil
}

// oauthClient loads the persisted token, refreshing or re-authorizing as
// needed, and persists whatever token it ends up with.
func (u *Uploader) oauthClient(ctx context.Context) (*http.Client, error) {
	secrets, err := os.ReadFile(u.cfg.Upload.ClientSecretsFile)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}

	conf, err := google.ConfigFromJSON(secrets, youtube.YoutubeUploadScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}

	token := u.loadToken()

	if token != nil && !token.Valid() && token.RefreshToken != "" {
		fresh, err := conf.TokenSource(ctx, token).Token()
		if err != nil {
			log.Printf("[upload] Token refresh failed: %v — re-authorizing", err)
			token = nil
		} else {
			token = fresh
		}
	}

	if token == nil || !token.Valid() {
		token, err = u.authorize(ctx, conf)
		if err != nil {
			return nil, err
		}
	}

	if err := u.saveToken(token); err != nil {
		log.Printf("[upload] Warning: could not persist token: %v", err)
	}

	return conf.Client(ctx, token), nil
}

// authorize runs the interactive consent flow: the user opens the printed
// URL and pastes the code back.
func (u *Uploader) authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	authURL := conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Open the following URL in your browser, then paste the authorization code:\n%s\n> ", authURL)

	var code string
	if _, err := fmt.Scan(&code); err != nil {
		return nil, fmt.Errorf("read authorization code: %w", err)
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return token, nil
}

func (u *Uploader) loadToken() *oauth2.Token {
	data, err := os.ReadFile(u.cfg.Upload.TokenFile)
	if err != nil {
		return nil
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		log.Printf("[upload] Warning: invalid token file: %v", err)
		return nil
	}
	return &token
}

func (u *Uploader) saveToken(token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(u.cfg.Upload.TokenFile, data, 0600)
}

// LogUpload saves the upload result next to the video
func LogUpload(videoID, videoPath, outputDir string, meta *types.VideoMetadata) error {
	entry := map[string]interface{}{
		"video_id":    videoID,
		"video_url":   fmt.Sprintf("https://youtube.com/watch?v=%s", videoID),
		"title":       meta.Title,
		"uploaded_at": time.Now().UTC().Format(time.RFC3339),
		"video_file":  videoPath,
	}

	logFile := fmt.Sprintf("%s/upload_%s.json", outputDir, time.Now().Format("20060102_150405"))
	data, _ := json.MarshalIndent(entry, "", "  ")
	if err := os.WriteFile(logFile, data, 0644); err != nil {
		return err
	}

	log.Printf("[upload] Upload log saved: %s", logFile)
	return nil
}
