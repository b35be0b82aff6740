package voice

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
)

// fetchBlob downloads src into a temporary file and returns its path. The
// path plays the role of an object URL and is released by revokeObjectURL.
func (m *Manager) fetchBlob(ctx context.Context, src string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", &FetchError{URL: src, Err: err}
	}
	req.Header.Set("Accept", "audio/*")

	resp, err := m.opts.HTTPClient.Do(req)
	if err != nil {
		return "", &FetchError{URL: src, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{URL: src, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isAudio(contentType) {
		m.logger.Warn("Voice response is not audio", "url", src, "contentType", contentType)
	}

	f, err := os.CreateTemp(m.opts.TempDir, "aiknvm-voice-*"+extension(src, contentType))
	if err != nil {
		return "", &FetchError{URL: src, Err: err}
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", &FetchError{URL: src, StatusCode: resp.StatusCode, Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", &FetchError{URL: src, StatusCode: resp.StatusCode, Err: err}
	}

	m.logger.Debug("Voice downloaded", "url", src, "file", f.Name())
	return f.Name(), nil
}

// revokeObjectURL removes a downloaded voice file.
func revokeObjectURL(objectURL string) error {
	if err := os.Remove(objectURL); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func isAudio(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.HasPrefix(mt, "audio/")
}

// extension picks a file extension for the downloaded audio so the decoder
// can probe it: the URL path's extension, else one registered for the
// content type.
func extension(src, contentType string) string {
	if u, err := url.Parse(src); err == nil {
		if ext := path.Ext(u.Path); len(ext) > 1 && len(ext) <= 5 {
			return ext
		}
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if exts, _ := mime.ExtensionsByType(mt); len(exts) > 0 {
			return exts[0]
		}
	}
	return ""
}
