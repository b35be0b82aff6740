package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Format is the PCM layout produced by a Decoder: signed 16-bit little
// endian samples.
type Format struct {
	SampleRate int
	Channels   int
}

// Decoder turns an encoded audio source into a PCM stream. Closing the
// stream aborts decoding.
type Decoder interface {
	Decode(ctx context.Context, src string, f Format) (io.ReadCloser, error)
}

// FFmpegDecoder decodes with an ffmpeg subprocess. ffmpeg reads http(s)
// sources itself, so playback starts before the download completes.
type FFmpegDecoder struct {
	// Binary defaults to "ffmpeg" on PATH.
	Binary string
}

// Args returns the ffmpeg arguments for src.
func (d FFmpegDecoder) Args(src string, f Format) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-i", src,
		"-f", "s16le", // signed 16-bit little-endian
		"-ar", strconv.Itoa(f.SampleRate),
		"-ac", strconv.Itoa(f.Channels),
		"-",
	}
}

// Decode implements Decoder.
func (d FFmpegDecoder) Decode(ctx context.Context, src string, f Format) (io.ReadCloser, error) {
	if src == "" {
		return nil, errors.New("empty audio source")
	}
	bin := d.Binary
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, bin, d.Args(src, f)...)
	// Pre-configure stdin before start.
	cmd.Stdin = strings.NewReader("")
	cmd.WaitDelay = 500 * time.Millisecond
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }

	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	return &ffmpegStream{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

// ffmpegStream is the stdout of a running ffmpeg process.
type ffmpegStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer

	waitOnce sync.Once
	waitErr  error
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if errors.Is(err, io.EOF) {
		if werr := s.wait(); werr != nil {
			return n, fmt.Errorf("ffmpeg failed: %w, stderr: %s", werr, s.stderr.String())
		}
	}
	return n, err
}

func (s *ffmpegStream) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}

// Close kills ffmpeg if it is still running and reaps it.
func (s *ffmpegStream) Close() error {
	_ = s.cmd.Process.Kill()
	_ = s.wait()
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	if over := b.buf.Len() - b.max; over > 0 {
		b.buf.Next(over)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(b.buf.String())
}
