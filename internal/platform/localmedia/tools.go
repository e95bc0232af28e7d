package localmedia

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/clipcut-backend/internal/platform/logger"
)

// Tools wraps the ffmpeg/ffprobe binaries.
//
// REQUIRED BINARIES in the worker runtime:
// - ffprobe for container/stream metadata
// - ffmpeg for audio extraction, energy probing, scene detection and
//   clip rendering
//
// Calls are synchronous and should run from pipeline stages, not
// request handlers.
type Tools interface {
	AssertReady(ctx context.Context) error

	Probe(ctx context.Context, videoPath string) (*ProbeResult, error)
	ExtractAudio(ctx context.Context, videoPath string, outPath string, opts AudioExtractOptions) (string, error)
	AudioEnergy(ctx context.Context, audioPath string, duration float64) ([]float64, error)
	DetectScenes(ctx context.Context, videoPath string, opts SceneDetectOptions) ([]float64, error)
	RenderClip(ctx context.Context, opts RenderClipOptions) error
}

type ProbeResult struct {
	DurationSeconds *float64
	FPS             *float64
	Raw             json.RawMessage
}

type AudioExtractOptions struct {
	SampleRateHz int
	Channels     int
}

type SceneDetectOptions struct {
	Threshold float64
	HWAccel   string // "", "cuda", "qsv", "d3d11va", "dxva2"
}

type RenderClipOptions struct {
	InputPath  string
	OutputPath string
	StartTime  float64
	EndTime    float64

	AspectRatio       string // "9:16", "1:1", anything else keeps source
	VideoQuality      string // "480p", "720p", "1080p"; capped at 1080p
	VideoFormat       string // "h264", "h265", "av1", "vp9"
	NormalizeLoudness bool

	// Optional burned-in overlays.
	SubtitlePath string
	TitleText    string
}

type tools struct {
	log *logger.Logger

	ffmpegPath  string
	ffprobePath string

	// per-second energy probes run in parallel up to this many
	energyWorkers int

	defaultTimeout time.Duration
}

func New(log *logger.Logger) Tools {
	return &tools{
		log:            log.With("service", "LocalMedia"),
		ffmpegPath:     "ffmpeg",
		ffprobePath:    "ffprobe",
		energyWorkers:  4,
		defaultTimeout: 30 * time.Minute,
	}
}

func (m *tools) AssertReady(ctx context.Context) error {
	for _, bin := range []string{m.ffmpegPath, m.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", bin, err)
		}
	}
	return nil
}

func (m *tools) Probe(ctx context.Context, videoPath string) (*ProbeResult, error) {
	if videoPath == "" {
		return nil, fmt.Errorf("videoPath required")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-show_streams",
		"-of", "json",
		videoPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w; out=%s", err, commandOutput(err))
	}

	var meta struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType    string `json:"codec_type"`
			AvgFrameRate string `json:"avg_frame_rate"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &meta); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	res := &ProbeResult{Raw: json.RawMessage(out)}
	if meta.Format.Duration != "" {
		if d, err := strconv.ParseFloat(meta.Format.Duration, 64); err == nil {
			res.DurationSeconds = &d
		}
	}
	for _, st := range meta.Streams {
		if st.CodecType != "video" {
			continue
		}
		if fps, ok := parseFrameRate(st.AvgFrameRate); ok {
			res.FPS = &fps
			break
		}
	}
	return res, nil
}

func (m *tools) ExtractAudio(ctx context.Context, videoPath string, outPath string, opts AudioExtractOptions) (string, error) {
	if videoPath == "" {
		return "", fmt.Errorf("videoPath required")
	}
	if outPath == "" {
		return "", fmt.Errorf("outPath required")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("mkdir outPath dir: %w", err)
	}

	sr := opts.SampleRateHz
	if sr <= 0 {
		sr = 16000
	}
	ch := opts.Channels
	if ch <= 0 {
		ch = 1
	}

	ctx, cancel := context.WithTimeout(ctx, m.defaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-y",
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(sr),
		"-ac", strconv.Itoa(ch),
		outPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg audio extract failed: %w; out=%s", err, string(out))
	}
	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("audio output missing at %s", outPath)
	}
	return outPath, nil
}

// AudioEnergy returns one normalized loudness value per whole second of
// the recording, each in [0,1].
func (m *tools) AudioEnergy(ctx context.Context, audioPath string, duration float64) ([]float64, error) {
	if audioPath == "" {
		return nil, fmt.Errorf("audioPath required")
	}
	n := int(duration)
	if n <= 0 {
		return nil, fmt.Errorf("duration must be at least one second")
	}

	energies := make([]float64, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.energyWorkers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			e, err := m.segmentEnergy(gctx, audioPath, float64(i))
			if err != nil {
				return err
			}
			energies[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return energies, nil
}

func (m *tools) segmentEnergy(ctx context.Context, audioPath string, start float64) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-ss", formatSeconds(start),
		"-t", "1",
		"-i", audioPath,
		"-af", "volumedetect",
		"-f", "null",
		"-",
	)
	// volumedetect reports on stderr
	out, err := cmd.CombinedOutput()
	if err != nil && ctx.Err() != nil {
		return 0, ctx.Err()
	}
	return parseMeanVolume(string(out)), nil
}

func (m *tools) DetectScenes(ctx context.Context, videoPath string, opts SceneDetectOptions) ([]float64, error) {
	if videoPath == "" {
		return nil, fmt.Errorf("videoPath required")
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = 0.3
	}

	ctx, cancel := context.WithTimeout(ctx, m.defaultTimeout)
	defer cancel()

	args := []string{}
	switch opts.HWAccel {
	case "cuda":
		args = append(args, "-hwaccel", "cuda", "-hwaccel_output_format", "cuda")
	case "d3d11va", "dxva2", "qsv":
		args = append(args, "-hwaccel", opts.HWAccel)
	}
	args = append(args,
		"-i", videoPath,
		"-vf", fmt.Sprintf("select='gt(scene,%g)',showinfo", threshold),
		"-f", "null",
		"-",
	)

	cmd := exec.CommandContext(ctx, m.ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg scene detection failed: %w; out=%s", err, truncateOutput(string(out)))
	}
	return ParseSceneTimes(string(out)), nil
}

func (m *tools) RenderClip(ctx context.Context, opts RenderClipOptions) error {
	if opts.InputPath == "" {
		return fmt.Errorf("input path required")
	}
	if opts.OutputPath == "" {
		return fmt.Errorf("output path required")
	}
	if opts.EndTime <= opts.StartTime {
		return fmt.Errorf("end time must be after start time")
	}
	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o755); err != nil {
		return fmt.Errorf("mkdir output dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.defaultTimeout)
	defer cancel()

	args := []string{
		"-y",
		"-ss", formatSeconds(opts.StartTime),
		"-i", opts.InputPath,
		"-t", formatSeconds(opts.EndTime - opts.StartTime),
		"-vf", buildVideoFilter(opts),
	}
	args = append(args, codecArgs(opts.VideoFormat)...)
	args = append(args,
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
	)
	if opts.NormalizeLoudness {
		args = append(args, "-af", "loudnorm")
	}
	args = append(args, opts.OutputPath)

	cmd := exec.CommandContext(ctx, m.ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg clip render failed: %w; out=%s", err, truncateOutput(string(out)))
	}
	if _, err := os.Stat(opts.OutputPath); err != nil {
		return fmt.Errorf("render output missing at %s", opts.OutputPath)
	}
	return nil
}

// qualityDims maps quality level to the 16:9 base resolution. 1080p is
// the hard ceiling regardless of what was requested.
var qualityDims = map[string][2]int{
	"480p":  {848, 480},
	"720p":  {1280, 720},
	"1080p": {1920, 1080},
}

func buildVideoFilter(opts RenderClipOptions) string {
	quality := opts.VideoQuality
	if _, ok := qualityDims[quality]; !ok {
		quality = "1080p"
	}
	base := qualityDims[quality]

	var vf string
	switch opts.AspectRatio {
	case "9:16":
		// Scale up so the frame covers the vertical canvas, then crop.
		scale := float64(base[0]) / 1920.0
		w := int(1080 * scale)
		h := int(1920 * scale)
		vf = fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1", w, h, w, h)
	case "1:1":
		scale := float64(base[0]) / 1920.0
		side := int(1080 * scale)
		vf = fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1", side, side, side, side)
	default:
		vf = fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", base[0], base[1])
	}

	if opts.SubtitlePath != "" {
		vf += fmt.Sprintf(",subtitles=%s", escapeFilterPath(opts.SubtitlePath))
	}
	if opts.TitleText != "" {
		vf += fmt.Sprintf(",drawtext=text='%s':fontcolor=white:fontsize=48:box=1:boxcolor=black@0.5:boxborderw=12:x=(w-text_w)/2:y=h*0.08",
			escapeDrawtext(opts.TitleText))
	}
	return vf
}

func codecArgs(format string) []string {
	switch format {
	case "h265":
		return []string{"-c:v", "libx265", "-preset", "medium", "-crf", "23"}
	case "av1":
		return []string{"-c:v", "libaom-av1", "-b:v", "2M", "-cpu-used", "4"}
	case "vp9":
		return []string{"-c:v", "libvpx-vp9", "-b:v", "2M", "-deadline", "good"}
	default:
		return []string{"-c:v", "libx264", "-preset", "medium", "-crf", "23"}
	}
}

// parseMeanVolume pulls the volumedetect mean_volume reading out of
// ffmpeg stderr and normalizes it assuming a -60dB..0dB range. Missing
// readings (silence-only probes, odd containers) fall back to 0.5.
func parseMeanVolume(output string) float64 {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "mean_volume:") {
			continue
		}
		rest := strings.SplitN(line, "mean_volume:", 2)[1]
		rest = strings.TrimSpace(strings.SplitN(rest, "dB", 2)[0])
		db, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			continue
		}
		normalized := (db + 60) / 60
		if normalized < 0 {
			return 0
		}
		if normalized > 1 {
			return 1
		}
		return normalized
	}
	return 0.5
}

// ParseSceneTimes extracts pts_time values from showinfo output lines.
func ParseSceneTimes(output string) []float64 {
	var times []float64
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "pts_time:") {
			continue
		}
		rest := strings.SplitN(line, "pts_time:", 2)[1]
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		if t, err := strconv.ParseFloat(fields[0], 64); err == nil {
			times = append(times, t)
		}
	}
	return times
}

func parseFrameRate(avg string) (float64, bool) {
	if avg == "" || avg == "0/0" {
		return 0, false
	}
	parts := strings.SplitN(avg, "/", 2)
	if len(parts) != 2 {
		return 0, false
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0, false
	}
	return num / den, true
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, `\`, `/`)
	p = strings.ReplaceAll(p, `:`, `\:`)
	return p
}

func escapeDrawtext(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, `:`, `\:`)
	return s
}

func truncateOutput(out string) string {
	const max = 4000
	if len(out) <= max {
		return out
	}
	return out[len(out)-max:]
}

func commandOutput(err error) string {
	if ee, ok := err.(*exec.ExitError); ok {
		return truncateOutput(string(ee.Stderr))
	}
	return ""
}
