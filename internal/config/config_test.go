package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`default_session = "work"`), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultSession != "work" {
		t.Errorf("default_session = %q, want work", cfg.DefaultSession)
	}
	if cfg.APIBaseURL != Default().APIBaseURL {
		t.Errorf("api_base_url = %q, want default", cfg.APIBaseURL)
	}
	if cfg.TypingDebounce() != 3*time.Second {
		t.Errorf("typing debounce = %v, want 3s", cfg.TypingDebounce())
	}
	if cfg.ChatPageSize != 10 || cfg.MessagePageSize != 20 {
		t.Errorf("page sizes = %d/%d, want 10/20", cfg.ChatPageSize, cfg.MessagePageSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("no error for missing config file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	want := Default()
	want.DefaultSession = "alt"
	want.HTTPTimeoutMS = 2000
	if err := Save(path, want); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.DefaultSession != "alt" || got.HTTPTimeoutMS != 2000 {
		t.Errorf("round trip lost fields: %+v", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`api_base_url = "http://file:5000/api"`), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LOOP_API_URL", "http://env:5000/api")
	t.Setenv("LOOP_SOCKET_URL", "ws://env:5000/socket")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIBaseURL != "http://env:5000/api" {
		t.Errorf("api_base_url = %q, env override lost", cfg.APIBaseURL)
	}
	if cfg.SocketURL != "ws://env:5000/socket" {
		t.Errorf("socket_url = %q, env override lost", cfg.SocketURL)
	}
}
