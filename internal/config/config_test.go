package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir: "/home/user/.local/share/caprev",
		LogDir:  "/home/user/.local/share/caprev/log",
		Blob: BlobConfig{
			Type:        "s3",
			S3Bucket:    "captions",
			S3Prefix:    "prod/",
			S3Region:    "eu-west-1",
			S3Endpoint:  "http://localhost:9000",
			S3AccessKey: "AK",
			S3SecretKey: "SK",
		},
		Store: StoreConfig{DataDir: "/srv/caprev/data"},
		Encryption: EncryptionConfig{
			Enabled:        true,
			PublicKeyPath:  "/home/user/.local/share/caprev/keys/caprev.pub",
			PrivateKeyPath: "/home/user/.local/share/caprev/keys/caprev.key",
		},
		Thumbnail: ThumbnailConfig{Enabled: true, FFmpegPath: "/usr/bin/ffmpeg", Offset: "00:00:02", Width: 480, Workers: 4},
		Server:    ServerConfig{Port: 8080, Env: "production", AdminUsername: "root", SessionTTL: "12h"},
		Export:    ExportConfig{SubtitleFontColor: "#F7F6F2FF"},
		Log:       LogConfig{MaxSizeMB: 10, MaxBackups: 2, MaxAgeDays: 7, Compress: true},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.Blob != original.Blob {
		t.Errorf("Blob = %+v, want %+v", got.Blob, original.Blob)
	}
	if got.Store.DataDir != "/srv/caprev/data" {
		t.Errorf("Store.DataDir = %q", got.Store.DataDir)
	}
	if got.Encryption != original.Encryption {
		t.Errorf("Encryption = %+v, want %+v", got.Encryption, original.Encryption)
	}
	if got.Thumbnail != original.Thumbnail {
		t.Errorf("Thumbnail = %+v, want %+v", got.Thumbnail, original.Thumbnail)
	}
	if got.Server != original.Server {
		t.Errorf("Server = %+v, want %+v", got.Server, original.Server)
	}
	if got.Export.SubtitleFontColor != "#F7F6F2FF" {
		t.Errorf("Export.SubtitleFontColor = %q", got.Export.SubtitleFontColor)
	}
	if got.Log != original.Log {
		t.Errorf("Log = %+v, want %+v", got.Log, original.Log)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/caprev")

	if cfg.LogDir != "/data/caprev/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/caprev/log")
	}
	if cfg.Blob.Type != "filesystem" || cfg.Blob.FSRoot != "/data/caprev/blobs" {
		t.Errorf("Blob = %+v", cfg.Blob)
	}
	if cfg.Store.DataDir != "/data/caprev/data" {
		t.Errorf("Store.DataDir = %q", cfg.Store.DataDir)
	}
	if cfg.Encryption.PrivateKeyPath != "/data/caprev/keys/caprev.key" {
		t.Errorf("Encryption.PrivateKeyPath = %q", cfg.Encryption.PrivateKeyPath)
	}
	if cfg.Thumbnail.Offset != "00:00:01" || cfg.Thumbnail.Width != 320 {
		t.Errorf("Thumbnail = %+v", cfg.Thumbnail)
	}
	if cfg.Server.Port != 3000 || cfg.Server.IsProduction() {
		t.Errorf("Server = %+v", cfg.Server)
	}
}

func TestServerConfig_SessionDuration(t *testing.T) {
	tests := []struct {
		ttl     string
		want    time.Duration
		wantErr bool
	}{
		{"", 24 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"forever", 0, true},
	}
	for _, tt := range tests {
		got, err := ServerConfig{SessionTTL: tt.ttl}.SessionDuration()
		if (err != nil) != tt.wantErr {
			t.Errorf("SessionDuration(%q) error = %v, wantErr %v", tt.ttl, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("SessionDuration(%q) = %v, want %v", tt.ttl, got, tt.want)
		}
	}
}

func TestServerConfig_LimitWindows(t *testing.T) {
	tests := []struct {
		name             string
		cfg              ServerConfig
		requests, upload time.Duration
		wantErr          bool
	}{
		{"defaults", ServerConfig{}, 15 * time.Minute, time.Hour, false},
		{"set", ServerConfig{RateLimitWindow: "1m", UploadLimitWindow: "10m"}, time.Minute, 10 * time.Minute, false},
		{"bad request window", ServerConfig{RateLimitWindow: "soon"}, 0, 0, true},
		{"negative upload window", ServerConfig{UploadLimitWindow: "-1h"}, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requests, upload, err := tt.cfg.LimitWindows()
			if (err != nil) != tt.wantErr {
				t.Fatalf("LimitWindows() error = %v, wantErr %v", err, tt.wantErr)
			}
			if requests != tt.requests || upload != tt.upload {
				t.Errorf("LimitWindows() = %v, %v, want %v, %v", requests, upload, tt.requests, tt.upload)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "caprev.toml")

		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("mode = %v, want 0600", info.Mode().Perm())
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "caprev.toml")

		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, NewConfig(dir)); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "caprev.toml")
		cfg := NewConfig(dir)
		cfg.Blob = BlobConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Blob.Type != "memory" {
			t.Errorf("Blob.Type = %q, want %q", got.Blob.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/caprev.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvAdminUsername:     "editor",
		EnvAdminPasswordHash: "$2a$10$hash",
		EnvSessionSecret:     "s3cret",
		EnvPort:              "4000",
		EnvEnv:               "production",
	}
	cfg := NewConfig(t.TempDir())

	if err := applyEnv(cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("applyEnv() error = %v", err)
	}

	want := ServerConfig{
		Port:              4000,
		Env:               "production",
		AdminUsername:     "editor",
		AdminPasswordHash: "$2a$10$hash",
		SessionSecret:     "s3cret",
		SessionTTL:        "24h",
		MaxUploadMB:       2048,

		RateLimitRequests:   100,
		RateLimitWindow:     "15m",
		UploadLimitRequests: 50,
		UploadLimitWindow:   "1h",
	}
	if cfg.Server != want {
		t.Errorf("Server = %+v, want %+v", cfg.Server, want)
	}

	if err := applyEnv(cfg, func(k string) string {
		if k == EnvPort {
			return "http"
		}
		return ""
	}); err == nil {
		t.Error("applyEnv() with bad port expected error")
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("CAPREV_SESSION_SECRET=from-file\nCAPREV_PORT=5000\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvSessionSecret, "")
	os.Unsetenv(EnvSessionSecret)
	t.Setenv(EnvPort, "6000")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}
	if got := os.Getenv(EnvSessionSecret); got != "from-file" {
		t.Errorf("%s = %q, want from-file", EnvSessionSecret, got)
	}
	if got := os.Getenv(EnvPort); got != "6000" {
		t.Errorf("%s = %q, existing value should win", EnvPort, got)
	}

	if err := LoadEnvFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("LoadEnvFile(missing) error = %v", err)
	}
}
