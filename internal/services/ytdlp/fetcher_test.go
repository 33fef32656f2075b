package ytdlp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"dubber/internal/testsupport"
)

func TestFetchLocalFileCopiesIntoStaging(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	srcDir := t.TempDir()
	source := filepath.Join(srcDir, "talk.mp4")
	if err := os.WriteFile(source, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}

	fetcher := NewFetcher(cfg, nil, WithProber(func(context.Context, string, string) (float64, error) {
		return 150, nil
	}))

	destDir := t.TempDir()
	result, err := fetcher.Fetch(context.Background(), source, destDir)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if result.Info.Title != "talk" {
		t.Errorf("title = %q, want talk", result.Info.Title)
	}
	if result.Info.DurationSec != 150 {
		t.Errorf("duration = %v, want 150", result.Info.DurationSec)
	}
	if result.Info.Ext != "mp4" {
		t.Errorf("ext = %q, want mp4", result.Info.Ext)
	}
	if got, err := os.ReadFile(result.LocalPath); err != nil || string(got) != "media" {
		t.Errorf("staged copy = %q (%v)", got, err)
	}
	if filepath.Dir(result.LocalPath) != destDir {
		t.Errorf("staged copy outside dest dir: %s", result.LocalPath)
	}
}

func TestFetchLocalMissingFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fetcher := NewFetcher(cfg, nil, WithProber(func(context.Context, string, string) (float64, error) {
		return 0, nil
	}))

	if _, err := fetcher.Fetch(context.Background(), "/does/not/exist.mp4", t.TempDir()); err == nil {
		t.Fatal("expected error for missing local source")
	}
}

func TestParseMetadata(t *testing.T) {
	output := []byte(`{"title":"Conference Talk","duration":543.2,"uploader":"confchan","ext":"mp4","id":"abc123"}`)
	info, err := parseMetadata(output)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if info.Title != "Conference Talk" || info.DurationSec != 543.2 || info.Uploader != "confchan" || info.Ext != "mp4" {
		t.Errorf("info = %+v", info)
	}
}

func TestParseMetadataEmptyOutput(t *testing.T) {
	if _, err := parseMetadata(nil); err == nil {
		t.Fatal("expected error for empty yt-dlp output")
	}
}

func TestIsLocalSource(t *testing.T) {
	cases := map[string]bool{
		"https://example.com/watch?v=1": false,
		"file:///tmp/video.mp4":         true,
		"/tmp/video.mp4":                true,
		"relative/path.mp4":             true,
	}
	for source, want := range cases {
		if got := isLocalSource(source); got != want {
			t.Errorf("isLocalSource(%q) = %v, want %v", source, got, want)
		}
	}
}
