package installer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/embydev/embytools/internal/release"
)

// maxRedirects matches browsers; release asset URLs redirect to a CDN.
const maxRedirects = 10

// ProgressFunc receives the bytes written so far and the total advertised by
// the server. It is only called when the total is known.
type ProgressFunc func(received, total int64)

// Downloader streams release assets to disk.
type Downloader struct {
	client    *http.Client
	userAgent string
}

// NewHTTPClient returns a client with transport defaults and a redirect cap.
// No overall timeout is set; large archives take as long as they take.
func NewHTTPClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// NewDownloader creates a downloader. A nil client uses NewHTTPClient.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = NewHTTPClient()
	}
	return &Downloader{
		client:    client,
		userAgent: release.UserAgent,
	}
}

// DownloadError describes a failed asset download.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: unexpected status code: %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// DownloadToFile writes url to destPath in one attempt and returns the number
// of bytes written. A failed download leaves whatever was written in place.
func (d *Downloader) DownloadToFile(ctx context.Context, url, destPath string, progress ProgressFunc) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &DownloadError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, &DownloadError{URL: url, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &DownloadError{URL: url, StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, &DownloadError{URL: url, Err: fmt.Errorf("create dest dir: %w", err)}
	}

	out, err := os.Create(destPath)
	if err != nil {
		return 0, &DownloadError{URL: url, Err: fmt.Errorf("create file: %w", err)}
	}

	var w io.Writer = out
	if resp.ContentLength > 0 && progress != nil {
		w = &progressWriter{w: out, total: resp.ContentLength, report: progress}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		out.Close()
		return n, &DownloadError{URL: url, Err: fmt.Errorf("copy response body: %w", err)}
	}
	if err := out.Close(); err != nil {
		return n, &DownloadError{URL: url, Err: fmt.Errorf("close file: %w", err)}
	}

	return n, nil
}

// progressWriter reports cumulative bytes after every write.
type progressWriter struct {
	w        io.Writer
	received int64
	total    int64
	report   ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.received += int64(n)
	p.report(p.received, p.total)
	return n, err
}
