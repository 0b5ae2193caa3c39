package newsapi

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/imroc/req/v3"
	"github.com/opennews/newsbox/internal/utils"
)

// DownloadJob describes a single file fetch from the news server.
type DownloadJob struct {
	RemoteName string // logical path on the server, may include a directory prefix
	DestPath   string // absolute path the file is installed at
	ScratchDir string // same-filesystem scratch area for in-progress temp files
	Progress   func(downloadedBytes, totalBytes int64)
}

// Download streams one file to a scratch temp file and atomically installs it
// at DestPath (remove existing, then move into place). A reader concurrent
// with the download never observes a partially written file under DestPath.
func (c *Client) Download(ctx context.Context, job *DownloadJob) error {
	if err := utils.EnsureDir(job.ScratchDir); err != nil {
		return fmt.Errorf("download %q: %w", job.RemoteName, err)
	}
	if err := utils.EnsureParent(job.DestPath); err != nil {
		return fmt.Errorf("download %q: %w", job.RemoteName, err)
	}

	tempFile, err := os.CreateTemp(job.ScratchDir, filepath.Base(job.DestPath)+".part.*")
	if err != nil {
		return fmt.Errorf("download %q: create temp: %w", job.RemoteName, err)
	}
	tempPath := tempFile.Name()
	tempFile.Close()

	success := false
	defer func() {
		if !success {
			os.Remove(tempPath)
		}
	}()

	resp, err := c.http.R().
		DisableAutoReadResponse().
		SetContext(ctx).
		SetQueryParam("filename", job.RemoteName).
		SetOutputFile(tempPath).
		SetDownloadCallbackWithInterval(func(info req.DownloadInfo) {
			if job.Progress != nil && info.Response.Response != nil {
				job.Progress(info.DownloadedSize, info.Response.ContentLength)
			}
		}, 500*time.Millisecond).
		Get(routeDownload)
	if err != nil {
		return newAPIError(CodeNetworkError, fmt.Sprintf("download %q request failed", job.RemoteName), err)
	}

	if resp.IsErrorState() {
		// the error body was dumped into the temp file by SetOutputFile
		body, _ := os.ReadFile(tempPath)
		return newAPIError(CodeTransferFailed,
			fmt.Sprintf("download %q: status %d: %s", job.RemoteName, resp.GetStatusCode(), truncate(string(body), 140)), nil)
	}

	// remove-then-move keeps the install step atomic with respect to readers
	if err := os.Remove(job.DestPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("download %q: remove old file: %w", job.RemoteName, err)
	}
	if err := os.Rename(tempPath, job.DestPath); err != nil {
		return fmt.Errorf("download %q: install: %w", job.RemoteName, err)
	}

	success = true
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
