package synth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// fakeTool writes an executable shell script standing in for a TTS tool.
func fakeTool(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o700); err != nil {
		t.Fatal(err)
	}
	return path
}

// writeAfter writes stdin (or a marker) to the argument following flag.
const writeAfter = `out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "%s" ]; then out="$2"; fi
  shift
done
%s > "$out"
`

func TestGTTSSynthesize(t *testing.T) {
	bin := fakeTool(t, fmt.Sprintf(writeAfter, "-o", "printf ID3"))
	dir := t.TempDir()
	e, err := NewGTTS(GTTSConfig{CommandConfig: CommandConfig{Binary: bin, Dir: dir}})
	if err != nil {
		t.Fatal(err)
	}

	path, err := e.Synthesize(context.Background(), "Hello there", "m1")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if filepath.Dir(path) != dir || filepath.Ext(path) != ".mp3" {
		t.Errorf("path = %q", path)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "ID3" {
		t.Errorf("audio = %q, %v", b, err)
	}
	if e.Name() != "gtts" {
		t.Errorf("Name() = %q", e.Name())
	}
}

func TestPiperSynthesize(t *testing.T) {
	bin := fakeTool(t, fmt.Sprintf(writeAfter, "--output_file", "cat"))
	model := filepath.Join(t.TempDir(), "voice.onnx")
	if err := os.WriteFile(model, []byte("model"), 0o600); err != nil {
		t.Fatal(err)
	}
	e, err := NewPiper(PiperConfig{CommandConfig: CommandConfig{Binary: bin, Dir: t.TempDir()}, ModelPath: model})
	if err != nil {
		t.Fatal(err)
	}

	path, err := e.Synthesize(context.Background(), "spoken text", "m2")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if filepath.Ext(path) != ".wav" {
		t.Errorf("path = %q", path)
	}
	if b, _ := os.ReadFile(path); string(b) != "spoken text" {
		t.Errorf("piper did not receive the text on stdin: %q", b)
	}
}

func TestPiperRequiresModel(t *testing.T) {
	if _, err := NewPiper(PiperConfig{}); err == nil {
		t.Error("expected an error without a model")
	}
	if _, err := NewPiper(PiperConfig{ModelPath: filepath.Join(t.TempDir(), "missing.onnx")}); err == nil {
		t.Error("expected an error for a missing model")
	}
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		script string
		text   string
	}{
		{"tool fails", "echo boom >&2\nexit 3\n", "hi"},
		{"no output", "exit 0\n", "hi"},
		{"empty text", "exit 0\n", "   "},
		{"text too long", "exit 0\n", strings.Repeat("a", maxCommandText+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewGTTS(GTTSConfig{CommandConfig: CommandConfig{Binary: fakeTool(t, tt.script), Dir: dir}})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := e.Synthesize(context.Background(), tt.text, "m"); err == nil {
				t.Error("expected an error")
			}
		})
	}

	left, _ := filepath.Glob(filepath.Join(dir, ".speech-*"))
	if len(left) != 0 {
		t.Errorf("temporary files left behind: %v", left)
	}
}

func TestCommandTimeout(t *testing.T) {
	e, err := NewGTTS(GTTSConfig{CommandConfig: CommandConfig{
		Binary:  fakeTool(t, "exec sleep 5\n"),
		Dir:     t.TempDir(),
		Timeout: 50 * time.Millisecond,
	}})
	if err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	_, err = e.Synthesize(context.Background(), "hi", "m")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Synthesize() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout did not stop the tool")
	}
}
