package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 8000 {
		t.Fatalf("expected default http port 8000, got %d", cfg.HTTP.Port)
	}
	if cfg.Dialogue.Mode != "mock" || cfg.Speech.Mode != "mock" {
		t.Fatalf("expected mock backends by default, got %s/%s", cfg.Dialogue.Mode, cfg.Speech.Mode)
	}
	if cfg.Podcast.SecondsPerChar != 0.1 {
		t.Fatalf("expected default seconds_per_char 0.1, got %v", cfg.Podcast.SecondsPerChar)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "speaksim.yaml")
	data := []byte(`
http:
  port: 9001
dialogue:
  mode: ollama
  endpoint: http://localhost:11434
  model: qwen2.5:1.5b
speech:
  mode: exec
  command: "piper --voice en"
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9001 {
		t.Fatalf("expected port override, got %d", cfg.HTTP.Port)
	}
	if cfg.Dialogue.Model != "qwen2.5:1.5b" {
		t.Fatalf("expected model override, got %s", cfg.Dialogue.Model)
	}
	if cfg.Speech.Command != "piper --voice en" {
		t.Fatalf("expected speech command override, got %s", cfg.Speech.Command)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPEAKSIM_HTTP_PORT", "8081")
	t.Setenv("SPEAKSIM_HTTP_ALLOW_ORIGINS", "http://a:3000, http://b:3000")
	t.Setenv("SPEAKSIM_BUS_REQUEST_TIMEOUT_MS", "15000")
	t.Setenv("SPEAKSIM_SPEECH_EXAMINER_VOICE", "en-GB-Neural2-B")
	t.Setenv("SPEAKSIM_PODCAST_SECONDS_PER_CHAR", "0.2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 8081 {
		t.Fatalf("expected http port override, got %d", cfg.HTTP.Port)
	}
	if len(cfg.HTTP.AllowOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.HTTP.AllowOrigins)
	}
	if cfg.Bus.RequestTimeoutMS != 15000 {
		t.Fatalf("expected request timeout override, got %d", cfg.Bus.RequestTimeoutMS)
	}
	if cfg.Speech.ExaminerVoice != "en-GB-Neural2-B" {
		t.Fatalf("expected examiner voice override, got %s", cfg.Speech.ExaminerVoice)
	}
	if cfg.Podcast.SecondsPerChar != 0.2 {
		t.Fatalf("expected seconds_per_char override, got %v", cfg.Podcast.SecondsPerChar)
	}
}

func TestValidateRejectsBadModes(t *testing.T) {
	t.Setenv("SPEAKSIM_DIALOGUE_MODE", "sonnet")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown dialogue mode")
	}
}

func TestValidateExecNeedsCommand(t *testing.T) {
	t.Setenv("SPEAKSIM_SPEECH_MODE", "exec")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for exec mode without command")
	}
}
