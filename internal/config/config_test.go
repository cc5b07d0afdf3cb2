package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	content := `
[[twitch]]
channel = "xqc"

[[twitch]]
channel = "sodapoppin"

[[youtube]]
id = "dQw4w9WgXcQ"
mode = "replay"

[[youtube]]
id = "@LofiGirl"

[sink]
url = "wss://example.com/ingest"
`
	path := writeTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if len(cfg.Twitch) != 2 {
		t.Fatalf("len(Twitch) = %d, want 2", len(cfg.Twitch))
	}
	if cfg.Twitch[0].Channel != "xqc" || cfg.Twitch[1].Channel != "sodapoppin" {
		t.Errorf("Twitch = %+v", cfg.Twitch)
	}
	if len(cfg.YouTube) != 2 {
		t.Fatalf("len(YouTube) = %d, want 2", len(cfg.YouTube))
	}
	if cfg.YouTube[0].ID != "dQw4w9WgXcQ" || cfg.YouTube[0].Mode != "replay" {
		t.Errorf("YouTube[0] = %+v", cfg.YouTube[0])
	}
	if cfg.YouTube[1].ID != "@LofiGirl" || cfg.YouTube[1].Mode != "" {
		t.Errorf("YouTube[1] = %+v", cfg.YouTube[1])
	}
	if cfg.Sink.URL != "wss://example.com/ingest" {
		t.Errorf("Sink.URL = %q", cfg.Sink.URL)
	}
}

func TestLoadPartial(t *testing.T) {
	content := `
[[twitch]]
channel = "shroud"
`
	path := writeTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if len(cfg.Twitch) != 1 || cfg.Twitch[0].Channel != "shroud" {
		t.Errorf("Twitch = %+v", cfg.Twitch)
	}
	if len(cfg.YouTube) != 0 {
		t.Errorf("YouTube = %+v, want empty", cfg.YouTube)
	}
	if cfg.Sink.URL != "" {
		t.Errorf("Sink.URL = %q, want empty", cfg.Sink.URL)
	}
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/simulchat.toml")
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{YouTube: []YouTubeSource{
		{ID: "a"},
		{ID: "b", Mode: "live"},
	}}
	cfg.ApplyDefaults()

	if cfg.YouTube[0].Mode != "auto" {
		t.Errorf("YouTube[0].Mode = %q, want %q", cfg.YouTube[0].Mode, "auto")
	}
	if cfg.YouTube[1].Mode != "live" {
		t.Errorf("YouTube[1].Mode = %q, want %q", cfg.YouTube[1].Mode, "live")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg: Config{
				Twitch:  []TwitchSource{{Channel: "xqc"}},
				YouTube: []YouTubeSource{{ID: "dQw4w9WgXcQ", Mode: "auto"}},
			},
		},
		{
			name:    "no sources",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name:    "empty twitch channel",
			cfg:     Config{Twitch: []TwitchSource{{}}},
			wantErr: true,
		},
		{
			name:    "empty youtube id",
			cfg:     Config{YouTube: []YouTubeSource{{Mode: "auto"}}},
			wantErr: true,
		},
		{
			name:    "unknown youtube mode",
			cfg:     Config{YouTube: []YouTubeSource{{ID: "x", Mode: "vod"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "simulchat.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}
