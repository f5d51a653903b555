// Package download fetches level archives over HTTP.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/datallboy/levelkeep/internal/infra/logger"
	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

// partSuffix marks a download that has not finished
const partSuffix = ".part"

// Downloader fetches url into dest. dest only appears once the whole body
// has been written; a failed fetch leaves nothing behind.
type Downloader interface {
	Fetch(ctx context.Context, url, dest string) error
}

type HTTP struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
	log       *logger.Logger
}

type Options struct {
	Timeout   time.Duration
	UserAgent string
	// RateLimit is bytes per second; 0 means unlimited
	RateLimit int64
}

func NewHTTP(opts Options, log *logger.Logger) *HTTP {
	if log == nil {
		log = logger.Nop()
	}

	h := &HTTP{
		client:    &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		log:       log,
	}

	if opts.RateLimit > 0 {
		burst := int(max(opts.RateLimit, chunkSize))
		h.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return h
}

func (h *HTTP) Fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", url, err)
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: url, Code: resp.StatusCode}
	}

	if resp.ContentLength > 0 {
		h.log.Info("Downloading %s (%s)", url, humanize.Bytes(uint64(resp.ContentLength)))
	} else {
		h.log.Info("Downloading %s", url)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}

	part := dest + partSuffix
	written, err := h.writePart(ctx, resp.Body, part)
	if err != nil {
		os.Remove(part)
		return fmt.Errorf("downloading %s: %w", url, err)
	}

	if resp.ContentLength > 0 && written != resp.ContentLength {
		os.Remove(part)
		return fmt.Errorf("downloading %s: got %s of %s: %w", url,
			humanize.Bytes(uint64(written)), humanize.Bytes(uint64(resp.ContentLength)), io.ErrUnexpectedEOF)
	}

	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return fmt.Errorf("finalizing %s: %w", dest, err)
	}

	elapsed := time.Since(start)
	h.log.Info("Downloaded %s in %s (%s/s)", filepath.Base(dest), elapsed.Round(time.Millisecond),
		humanize.Bytes(uint64(float64(written)/max(elapsed.Seconds(), 0.001))))
	return nil
}

func (h *HTTP) writePart(ctx context.Context, body io.Reader, part string) (int64, error) {
	f, err := os.OpenFile(part, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, err
	}

	var src io.Reader = body
	if h.limiter != nil {
		src = &throttledReader{ctx: ctx, r: body, limiter: h.limiter}
	}

	buf := make([]byte, chunkSize)
	written, err := io.CopyBuffer(f, src, buf)
	if err != nil {
		f.Close()
		return written, err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return written, err
	}

	return written, f.Close()
}

// StatusError is returned for any non-200 response
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status: %d", e.URL, e.Code)
}

// IsStatus reports whether err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
