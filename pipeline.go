package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"lofi-playlist-pipeline/assembler"
	"lofi-playlist-pipeline/config"
	"lofi-playlist-pipeline/folders"
	"lofi-playlist-pipeline/imagegen"
	"lofi-playlist-pipeline/metadata"
	"lofi-playlist-pipeline/prompts"
	"lofi-playlist-pipeline/songgen"
	"lofi-playlist-pipeline/types"
	"lofi-playlist-pipeline/upload"
	"lofi-playlist-pipeline/video"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env (local dev only)
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	runID := uuid.NewString()[:8]
	log.Printf("🎵 Lofi Playlist Pipeline starting — Run ID: %s", runID)

	ctx := context.Background()
	state := &types.PipelineState{
		RunID:     runID,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}

	// Create folder structure for this run
	runFolders, err := folders.CreateRunFolders(cfg.Paths.Output)
	if err != nil {
		log.Fatalf("Failed to create run folders: %v", err)
	}
	runDir := filepath.Dir(runFolders.Music)
	log.Printf("📁 Output dir: %s", runDir)

	// Save state on exit
	defer func() {
		state.CompletedAt = time.Now().UTC().Format(time.RFC3339)
		saveJSON(filepath.Join(runDir, "pipeline_state.json"), state)
		if state.Error != "" {
			log.Printf("❌ Pipeline failed: %s", state.Error)
			os.Exit(1)
		}
		log.Printf("✅ Run completed! All files are stored in: %s", runDir)
	}()

	// ─────────────────────────────────────────────
	// STAGE 1: Song prompts
	// ─────────────────────────────────────────────
	log.Println("\n━━━ STAGE 1: Song Prompts ━━━")
	source := prompts.New(cfg)
	entries, err := source.Get(ctx)
	if err != nil {
		state.Error = fmt.Sprintf("Stage 1 Prompts: %v", err)
		return
	}
	state.Prompts = entries
	saveJSON(filepath.Join(runDir, "prompts.json"), entries)

	// ─────────────────────────────────────────────
	// STAGE 2: Audio generation
	// ─────────────────────────────────────────────
	log.Println("\n━━━ STAGE 2: Audio Generation ━━━")
	generator := songgen.New(cfg)
	songs, err := generator.GenerateAll(ctx, entries, runFolders.MusicSegments)
	if err != nil {
		state.Error = fmt.Sprintf("Stage 2 Generation: %v", err)
		return
	}
	if len(songs) == 0 {
		state.Error = "Stage 2 Generation: no songs were generated"
		return
	}
	state.Songs = songs
	saveJSON(filepath.Join(runDir, "songs.json"), songs)

	// ─────────────────────────────────────────────
	// STAGE 3: Assembly + background image
	// Image synthesis only shares the prompt list, so it runs alongside
	// the audio assembly.
	// ─────────────────────────────────────────────
	log.Println("\n━━━ STAGE 3: Playlist Assembly + Background Image ━━━")

	type imageResult struct {
		path string
		err  error
	}
	imageCh := make(chan imageResult, 1)
	go func() {
		synth := imagegen.New(cfg)
		path, err := synth.Generate(ctx, entries, runFolders.Photos)
		imageCh <- imageResult{path, err}
	}()

	asm := assembler.New(cfg)
	audioPath, timestamps, err := asm.Run(songs, runFolders.Music)
	if err != nil {
		state.Error = fmt.Sprintf("Stage 3 Assembly: %v", err)
		return
	}
	state.AudioFile = audioPath
	state.Timestamps = timestamps

	img := <-imageCh
	if img.err != nil {
		state.Error = fmt.Sprintf("Stage 3 Image: %v", img.err)
		return
	}
	state.ImageFile = img.path

	// ─────────────────────────────────────────────
	// STAGE 4: Video composition
	// ─────────────────────────────────────────────
	log.Println("\n━━━ STAGE 4: Video Composition ━━━")
	outputVideo := filepath.Join(runFolders.Videos, "playlist_video.mp4")
	composer := video.New(cfg)
	if err := composer.Run(ctx, audioPath, img.path, outputVideo); err != nil {
		state.Error = fmt.Sprintf("Stage 4 Video: %v", err)
		return
	}
	state.VideoFile = outputVideo

	// ─────────────────────────────────────────────
	// STAGE 5: Metadata
	// ─────────────────────────────────────────────
	log.Println("\n━━━ STAGE 5: Metadata Generation ━━━")
	metaGen := metadata.New(cfg)
	title, description, err := metaGen.Run(ctx, timestamps)
	if err != nil {
		state.Error = fmt.Sprintf("Stage 5 Metadata: %v", err)
		return
	}
	meta := &types.VideoMetadata{
		Title:       title,
		Description: description,
		Tags:        cfg.Upload.Tags,
		CategoryID:  cfg.Upload.CategoryID,
		Visibility:  cfg.Upload.Visibility,
	}
	state.Metadata = meta
	saveJSON(filepath.Join(runDir, "metadata.json"), meta)

	// ─────────────────────────────────────────────
	// STAGE 6: YouTube upload
	// ─────────────────────────────────────────────
	log.Println("\n━━━ STAGE 6: YouTube Upload ━━━")
	uploader := upload.New(cfg)
	videoID := uploader.Run(ctx, outputVideo, meta)
	if videoID == "" {
		log.Println("⚠️  Video upload failed — artifacts are kept in the run folder")
	} else {
		state.YouTubeID = videoID
		state.YouTubeURL = fmt.Sprintf("https://youtube.com/watch?v=%s", videoID)
		_ = upload.LogUpload(videoID, outputVideo, runFolders.Videos, meta)
	}
}

func saveJSON(path string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("Warning: could not marshal JSON for %s: %v", path, err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("Warning: could not save %s: %v", path, err)
	}
}
