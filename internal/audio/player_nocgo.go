//go:build nocgo
// +build nocgo

package audio

import "errors"

// Stub implementations for static analysis and builds without CGO

// ErrNoAudio is returned by the nocgo build.
var ErrNoAudio = errors.New("audio not available in nocgo build")

// OtoBackend stub for nocgo builds
type OtoBackend struct{}

// NewOtoBackend returns ErrNoAudio.
func NewOtoBackend(cfg Config) (*OtoBackend, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return nil, ErrNoAudio
}

// Open returns ErrNoAudio.
func (b *OtoBackend) Open(string, Listener) (Handle, error) { return nil, ErrNoAudio }

// Prime returns ErrNoAudio.
func (b *OtoBackend) Prime() error { return ErrNoAudio }
