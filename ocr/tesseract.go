// Package ocr recovers text from post images, for captions that leave the
// show details on the flyer.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"showfinder/metrics"
)

// ErrUnavailable is returned when no OCR engine can run.
var ErrUnavailable = errors.New("ocr engine unavailable")

// Tesseract runs a local tesseract binary on downloaded images.
type Tesseract struct {
	binary     string
	httpClient *http.Client
}

// NewTesseract creates a tesseract-backed engine. An empty path looks the
// binary up on PATH; a path that does not exist leaves the engine
// unavailable rather than failing.
func NewTesseract(path string) *Tesseract {
	if path == "" {
		path, _ = exec.LookPath("tesseract")
	} else if _, err := os.Stat(path); err != nil {
		path = ""
	}
	return &Tesseract{
		binary:     path,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Available reports whether the tesseract binary was found.
func (t *Tesseract) Available() bool {
	return t.binary != ""
}

// RecoverText downloads the image if the reference is a URL and runs
// tesseract over it.
func (t *Tesseract) RecoverText(ctx context.Context, imageRef string) (string, error) {
	if !t.Available() {
		return "", ErrUnavailable
	}

	path := imageRef
	if strings.HasPrefix(imageRef, "http://") || strings.HasPrefix(imageRef, "https://") {
		downloaded, cleanup, err := t.download(ctx, imageRef)
		if err != nil {
			metrics.TextRecoveries.WithLabelValues("tesseract", "error").Inc()
			return "", err
		}
		defer cleanup()
		path = downloaded
	}

	out, err := exec.CommandContext(ctx, t.binary, path, "stdout").Output()
	if err != nil {
		metrics.TextRecoveries.WithLabelValues("tesseract", "error").Inc()
		return "", fmt.Errorf("run tesseract: %w", err)
	}
	metrics.TextRecoveries.WithLabelValues("tesseract", "ok").Inc()
	return strings.TrimSpace(string(out)), nil
}

func (t *Tesseract) download(ctx context.Context, imageURL string) (string, func(), error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	f, err := os.CreateTemp("", "showfinder-*.jpg")
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("save image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("save image: %w", err)
	}

	cleanup := func() { os.Remove(f.Name()) }
	return f.Name(), cleanup, nil
}
