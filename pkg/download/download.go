// Package download fetches burst rasters and metadata files from ASF. Files
// already present in the working directory are kept, and the remaining
// downloads run concurrently with bounded retries.
package download

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/asfadmin/burst2safe/pkg/burst"
	"github.com/asfadmin/burst2safe/pkg/constants"
	"github.com/asfadmin/burst2safe/pkg/errors"
	"github.com/asfadmin/burst2safe/pkg/logging"
)

// TokenEnvVar is the environment variable holding an Earthdata Login bearer
// token.
const TokenEnvVar = "EDL_TOKEN"

// Downloader fetches burst files over HTTP.
type Downloader struct {
	httpClient  *http.Client
	token       string
	force       bool
	concurrency int
	maxRetries  int
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(d *Downloader) { d.httpClient = httpClient }
}

// WithToken sets the Earthdata Login bearer token. Without one, requests are
// sent unauthenticated and rely on the server's redirect flow.
func WithToken(token string) Option {
	return func(d *Downloader) { d.token = token }
}

// WithForce re-downloads files that already exist locally.
func WithForce(force bool) Option {
	return func(d *Downloader) { d.force = force }
}

// WithConcurrency bounds the number of simultaneous downloads.
func WithConcurrency(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// NewDownloader creates a downloader. The Earthdata token is read from the
// environment unless provided with WithToken.
func NewDownloader(opts ...Option) *Downloader {
	d := &Downloader{
		httpClient:  &http.Client{Timeout: constants.DownloadTimeout},
		token:       os.Getenv(TokenEnvVar),
		concurrency: constants.MaxConcurrentDownloads,
		maxRetries:  constants.MaxDownloadRetries,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// job is one file to fetch.
type job struct {
	url  string
	path string
}

// DownloadBursts fetches every burst's raster and metadata file that is not
// already present. Metadata files are shared between bursts of the same
// source SLC and are fetched once.
func (d *Downloader) DownloadBursts(ctx context.Context, burstInfos []*burst.Info) error {
	jobs := d.collectJobs(burstInfos)
	if len(jobs) == 0 {
		logging.Debug().Msg("all burst files already present")
		return nil
	}
	logging.Info().Int("files", len(jobs)).Msg("downloading burst files")

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(d.concurrency)
	for _, j := range jobs {
		j := j
		group.Go(func() error {
			return d.downloadFile(ctx, j)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for _, j := range jobs {
		if _, err := os.Stat(j.path); err != nil {
			return errors.NewDownloadError(j.url, d.maxRetries, fmt.Errorf("file missing after download"))
		}
	}
	return nil
}

// collectJobs gathers the distinct files to fetch, skipping existing ones
// unless force is set.
func (d *Downloader) collectJobs(burstInfos []*burst.Info) []job {
	seen := make(map[string]bool)
	var jobs []job
	add := func(url, path string) {
		if url == "" || seen[path] {
			return
		}
		seen[path] = true
		if !d.force {
			if _, err := os.Stat(path); err == nil {
				return
			}
		}
		jobs = append(jobs, job{url: url, path: path})
	}
	for _, info := range burstInfos {
		add(info.DataURL, info.DataPath)
		add(info.MetadataURL, info.MetadataPath)
	}
	return jobs
}

// downloadFile fetches one file with bounded retries. Responses with status
// 202 mean the file is still being extracted server-side and are retried
// like transient errors.
func (d *Downloader) downloadFile(ctx context.Context, j job) error {
	var lastErr error
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt) * time.Second
			backoff += time.Duration(rand.Int63n(int64(time.Second)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		err := d.fetchOnce(ctx, j)
		if err == nil {
			logging.Debug().Str("path", j.path).Msg("downloaded")
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		// Retrying cannot help when credentials are missing.
		if errors.IsCredentialsRequired(err) {
			return err
		}
		lastErr = err
		logging.Warn().Err(err).Str("url", j.url).Int("attempt", attempt).Msg("download failed")
	}
	return errors.NewDownloadError(j.url, d.maxRetries, lastErr)
}

// fetchOnce performs a single download attempt into a temporary file that is
// renamed on success, so partial downloads never look complete.
func (d *Downloader) fetchOnce(ctx context.Context, j job) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.url, nil)
	if err != nil {
		return err
	}
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized && d.token == "":
		return fmt.Errorf("server returned %s and no %s token is set: %w",
			resp.Status, TokenEnvVar, errors.ErrCredentialsRequired)
	case resp.StatusCode == http.StatusAccepted:
		return fmt.Errorf("file is still being prepared (status 202)")
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmpPath := j.path + ".part"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, constants.FilePermissions)
	if err != nil {
		return errors.WrapIO("create", tmpPath, err)
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return errors.WrapIO("write", tmpPath, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.WrapIO("close", tmpPath, err)
	}
	if err := os.Rename(tmpPath, j.path); err != nil {
		return errors.WrapIO("rename", tmpPath, err)
	}
	return nil
}
