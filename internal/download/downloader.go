// Package download is the Download/Extract Service (C7): it fetches the
// self-update archive named by a DownloadConfiguration, retrying transient
// failures and falling back to a CDN mirror on a 429 from the primary
// host, then extracts the named agent binary from the archive (spec.md
// §4.6).
package download

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/openframe-oss/openframe-client/internal/agenterr"
	"github.com/openframe-oss/openframe-client/internal/model"
	"github.com/ulikunitz/xz"
)

const (
	maxAttempts  = 3
	attemptTimeout = 300 * time.Second
	sizeFloor    = 100 * 1024 // 100 KB
)

// githubReleaseURL matches a GitHub release-asset download URL, capturing
// the parts needed to build the jsdelivr CDN equivalent.
var githubReleaseURL = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)/releases/download/([^/]+)/(.+)$`)

// Service performs C7's download_and_extract operation.
type Service struct {
	client *http.Client
}

// New creates a Service. client is typically http.DefaultClient or a
// GitHub-token-authenticated client from NewAuthenticatedClient.
func New(client *http.Client) *Service {
	if client == nil {
		client = http.DefaultClient
	}
	return &Service{client: client}
}

// DownloadAndExtract fetches cfg.Link, verifies the archive meets the size
// floor, and returns the bytes of the entry matching cfg.AgentFileName.
func (s *Service) DownloadAndExtract(ctx context.Context, cfg model.DownloadConfiguration) ([]byte, error) {
	archive, err := s.downloadWithRetry(ctx, cfg.Link)
	if err != nil {
		return nil, err
	}
	if len(archive) < sizeFloor {
		return nil, agenterr.New(agenterr.CategoryArchive, agenterr.KindCorruptArchive,
			fmt.Sprintf("downloaded archive is %d bytes, below the %d byte floor", len(archive), sizeFloor))
	}

	binary, err := extractAgent(archive, cfg.FileName, cfg.AgentFileName)
	if err != nil {
		return nil, err
	}
	if len(binary) < sizeFloor {
		return nil, agenterr.New(agenterr.CategoryArchive, agenterr.KindCorruptArchive,
			fmt.Sprintf("extracted binary is %d bytes, below the %d byte floor", len(binary), sizeFloor))
	}
	return binary, nil
}

// downloadWithRetry performs up to maxAttempts GETs against url, backing
// off 2*attempt seconds between attempts. A 429 on any attempt switches
// immediately to the CDN-transformed URL for exactly one additional try
// rather than consuming the remaining retry budget on the rate-limited
// host.
func (s *Service) downloadWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(2*attempt) * time.Second
			slog.Debug("retrying download", "url", url, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		data, status, err := s.get(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if status == http.StatusTooManyRequests {
			cdnURL, ok := cdnFallbackURL(url)
			if !ok {
				return nil, agenterr.Wrap(agenterr.CategoryNetwork, agenterr.KindRateLimited, "rate limited, no CDN fallback available", err)
			}
			slog.Warn("primary download rate limited, retrying via CDN", "url", url, "cdn_url", cdnURL)
			data, _, err := s.get(ctx, cdnURL)
			if err != nil {
				return nil, agenterr.Wrap(agenterr.CategoryNetwork, agenterr.KindRateLimited, "CDN fallback also failed", err)
			}
			return data, nil
		}
	}
	return nil, agenterr.Wrap(agenterr.CategoryNetwork, agenterr.KindNetworkTransient,
		fmt.Sprintf("download failed after %d attempts", maxAttempts), lastErr)
}

func (s *Service) get(ctx context.Context, url string) ([]byte, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read body: %w", err)
	}
	return data, resp.StatusCode, nil
}

// cdnFallbackURL rewrites a GitHub release-asset URL into its
// cdn.jsdelivr.net/gh mirror equivalent. Returns ok=false if url is not a
// recognizable GitHub release URL.
func cdnFallbackURL(url string) (string, bool) {
	m := githubReleaseURL.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	owner, repo, tag, path := m[1], m[2], m[3], m[4]
	return fmt.Sprintf("https://cdn.jsdelivr.net/gh/%s/%s@%s/%s", owner, repo, tag, path), true
}

// extractAgent locates and returns the bytes of the agent binary inside
// archive. archiveFileName (e.g. "client.tar.gz") determines the container
// format; agentFileName is matched against each entry's basename,
// case-insensitively.
func extractAgent(archive []byte, archiveFileName, agentFileName string) ([]byte, error) {
	lower := strings.ToLower(archiveFileName)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return extractFromZip(archive, agentFileName)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return extractFromTarGz(archive, agentFileName)
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return extractFromTarXz(archive, agentFileName)
	default:
		// macOS release assets are the raw binary itself, not an archive.
		return archive, nil
	}
}

func extractFromZip(archive []byte, agentFileName string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CategoryArchive, agenterr.KindCorruptArchive, "invalid zip archive", err)
	}
	target := strings.ToLower(agentFileName)
	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(baseName(f.Name)), target) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open zip entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read zip entry %s: %w", f.Name, err)
		}
		return data, nil
	}
	return nil, agenterr.New(agenterr.CategoryArchive, agenterr.KindCorruptArchive,
		fmt.Sprintf("no entry matching %q found in zip archive", agentFileName))
}

func extractFromTarGz(archive []byte, agentFileName string) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CategoryArchive, agenterr.KindCorruptArchive, "invalid gzip stream", err)
	}
	defer gr.Close()
	return extractFromTar(gr, agentFileName)
}

func extractFromTarXz(archive []byte, agentFileName string) ([]byte, error) {
	xr, err := xz.NewReader(bytes.NewReader(archive))
	if err != nil {
		return nil, agenterr.Wrap(agenterr.CategoryArchive, agenterr.KindCorruptArchive, "invalid xz stream", err)
	}
	return extractFromTar(xr, agentFileName)
}

func extractFromTar(r io.Reader, agentFileName string) ([]byte, error) {
	target := strings.ToLower(agentFileName)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, agenterr.Wrap(agenterr.CategoryArchive, agenterr.KindCorruptArchive, "failed to read tar header", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		base := baseName(hdr.Name)
		if strings.HasPrefix(base, "._") {
			continue // macOS AppleDouble metadata entries
		}
		if strings.ToLower(base) != target {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry %s: %w", hdr.Name, err)
		}
		return data, nil
	}
	return nil, agenterr.New(agenterr.CategoryArchive, agenterr.KindCorruptArchive,
		fmt.Sprintf("no entry matching %q found in tar archive", agentFileName))
}

func baseName(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
