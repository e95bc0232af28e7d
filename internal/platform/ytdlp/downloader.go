package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/clipcut-backend/internal/platform/logger"
)

// Downloader fetches a remote video to a local path using the yt-dlp
// binary. Download progress is reported through a callback parsed from
// yt-dlp's stdout.
type Downloader interface {
	Download(ctx context.Context, url string, outPath string, onProgress func(fraction float64)) error
	FetchTitle(ctx context.Context, url string) (string, error)
}

type Options struct {
	Binary         string
	CookiesBrowser string // --cookies-from-browser value, e.g. "chrome:Default"
	CookiesFile    string // --cookies value
}

type downloader struct {
	log  *logger.Logger
	opts Options
}

func New(log *logger.Logger, opts Options) Downloader {
	if opts.Binary == "" {
		opts.Binary = "yt-dlp"
	}
	return &downloader{
		log:  log.With("service", "YtDlp"),
		opts: opts,
	}
}

func (d *downloader) Download(ctx context.Context, url string, outPath string, onProgress func(float64)) error {
	if url == "" {
		return fmt.Errorf("url required")
	}
	if outPath == "" {
		return fmt.Errorf("outPath required")
	}

	args := []string{
		"-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		"--merge-output-format", "mp4",
		"--newline",
		"-o", outPath,
	}
	args = append(args, d.cookieArgs()...)
	args = append(args, url)

	cmd := exec.CommandContext(ctx, d.opts.Binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start yt-dlp: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if frac, ok := ParseProgressLine(line); ok && onProgress != nil {
			// Reserve the last 10% for merge/finalization.
			onProgress(frac * 0.9)
		}
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("yt-dlp failed: %w", err)
	}
	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("downloaded file not found at %s", outPath)
	}
	if onProgress != nil {
		onProgress(1.0)
	}
	return nil
}

func (d *downloader) FetchTitle(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	args := append([]string{"--get-title", "--no-warnings"}, d.cookieArgs()...)
	args = append(args, url)
	cmd := exec.CommandContext(ctx, d.opts.Binary, args...)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("yt-dlp --get-title failed: %w, stderr: %s", err, stderr.String())
	}
	title := strings.TrimSpace(out.String())
	if title == "" {
		return "", fmt.Errorf("yt-dlp returned empty title")
	}
	return title, nil
}

func (d *downloader) cookieArgs() []string {
	if d.opts.CookiesFile != "" {
		return []string{"--cookies", d.opts.CookiesFile}
	}
	if d.opts.CookiesBrowser != "" {
		return []string{"--cookies-from-browser", d.opts.CookiesBrowser}
	}
	return nil
}

// ParseProgressLine extracts the percentage from a yt-dlp "[download]
// 42.3% of ..." line. Returns the fraction in [0,1].
func ParseProgressLine(line string) (float64, bool) {
	if !strings.Contains(line, "[download]") || !strings.Contains(line, "%") {
		return 0, false
	}
	for _, field := range strings.Fields(line) {
		if !strings.HasSuffix(field, "%") {
			continue
		}
		pct, err := strconv.ParseFloat(strings.TrimSuffix(field, "%"), 64)
		if err != nil {
			continue
		}
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		return pct / 100.0, true
	}
	return 0, false
}
