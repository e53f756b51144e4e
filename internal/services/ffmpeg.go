package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bobarin/viralforge/internal/config"
	"github.com/bobarin/viralforge/internal/models"
)

// ---------------------------------------------------------------------------
// FFmpeg media service
// Stitches generated clips, lays audio under them, burns captions and
// re-encodes for the target platform. Without an ffmpeg binary every call
// answers with a placeholder result.
// ---------------------------------------------------------------------------

const (
	ffmpegClientName    = "FFmpeg"
	fadeSeconds         = 0.5
	mockClipSeconds     = 6
	mockStitchFileSize  = 50000000
	mockOptimizedSizeMB = 45.2
	defaultOverlayFont  = 48
	maxStderrLogLen     = 600
)

// Transition between stitched clips.
const (
	TransitionFade = "fade"
	TransitionNone = "none"
)

// binarySearchDirs are checked after PATH when no explicit path is configured.
var binarySearchDirs = []string{"/usr/local/bin", "/usr/bin", "/opt/homebrew/bin"}

// PlatformPreset holds the encode target of one publishing platform.
type PlatformPreset struct {
	Name      string  `json:"name" yaml:"name"`
	Width     int     `json:"width" yaml:"width"`
	Height    int     `json:"height" yaml:"height"`
	FPS       int     `json:"fps" yaml:"fps"`
	Bitrate   string  `json:"bitrate" yaml:"bitrate"`
	MaxSizeMB float64 `json:"max_size_mb" yaml:"max_size_mb"`
	Format    string  `json:"format" yaml:"format"`
}

func (p PlatformPreset) Resolution() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

// DefaultPlatform is used for unknown platform names.
const DefaultPlatform = "tiktok"

var platformPresets = map[string]PlatformPreset{
	"tiktok":          {Name: "tiktok", Width: 1080, Height: 1920, FPS: 30, Bitrate: "4M", MaxSizeMB: 287, Format: "mp4"},
	"instagram_reels": {Name: "instagram_reels", Width: 1080, Height: 1920, FPS: 30, Bitrate: "3.5M", MaxSizeMB: 100, Format: "mp4"},
	"youtube_shorts":  {Name: "youtube_shorts", Width: 1080, Height: 1920, FPS: 30, Bitrate: "5M", MaxSizeMB: 100, Format: "mp4"},
	"twitter":         {Name: "twitter", Width: 1280, Height: 720, FPS: 30, Bitrate: "2M", MaxSizeMB: 512, Format: "mp4"},
}

// Preset returns the preset for platform, falling back to tiktok.
func Preset(platform string) PlatformPreset {
	if p, ok := platformPresets[strings.ToLower(strings.TrimSpace(platform))]; ok {
		return p
	}
	return platformPresets[DefaultPlatform]
}

// KnownPlatform reports whether platform has its own preset.
func KnownPlatform(platform string) bool {
	_, ok := platformPresets[strings.ToLower(strings.TrimSpace(platform))]
	return ok
}

// PlatformPresets lists every preset sorted by name.
func PlatformPresets() []PlatformPreset {
	out := make([]PlatformPreset, 0, len(platformPresets))
	for _, p := range platformPresets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// overlayPositions maps a named position onto drawtext coordinates.
var overlayPositions = map[string]string{
	"top":          "x=(w-text_w)/2:y=50",
	"center":       "x=(w-text_w)/2:y=(h-text_h)/2",
	"bottom":       "x=(w-text_w)/2:y=h-text_h-50",
	"top_left":     "x=50:y=50",
	"top_right":    "x=w-text_w-50:y=50",
	"bottom_left":  "x=50:y=h-text_h-50",
	"bottom_right": "x=w-text_w-50:y=h-text_h-50",
}

// ---------------------------------------------------------------------------
// FFmpegService
// ---------------------------------------------------------------------------

type FFmpegService struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
	mockMode    bool
}

// NewFFmpegService locates ffmpeg and ffprobe. A missing ffmpeg puts the
// service in mock mode.
func NewFFmpegService(cfg config.MediaConfig) *FFmpegService {
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "viralforge")
	}

	s := &FFmpegService{
		ffmpegPath: findBinary(cfg.FFmpegPath, "ffmpeg"),
		tempDir:    tempDir,
	}

	probe := cfg.FFprobePath
	if probe == "" && s.ffmpegPath != "" {
		sibling := filepath.Join(filepath.Dir(s.ffmpegPath), "ffprobe")
		if isExecutable(sibling) {
			probe = sibling
		}
	}
	s.ffprobePath = findBinary(probe, "ffprobe")

	s.mockMode = s.ffmpegPath == ""
	if s.mockMode {
		warnMockMode(ffmpegClientName, "ffmpeg binary", "FFMPEG_PATH")
	}
	return s
}

func (s *FFmpegService) MockMode() bool { return s.mockMode }

// findBinary resolves name from an explicit path, PATH, then the common
// install directories. It returns "" when nothing executable is found.
func findBinary(explicit, name string) string {
	if explicit != "" {
		if isExecutable(explicit) {
			return explicit
		}
		if p, err := exec.LookPath(explicit); err == nil {
			return p
		}
		return ""
	}
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	for _, dir := range binarySearchDirs {
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate
		}
	}
	return ""
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Mode()&0o111 != 0
}

// run executes ffmpeg with args, creating the output directory first.
func (s *FFmpegService) run(ctx context.Context, output string, args ...string) error {
	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderrLogLen {
			msg = msg[len(msg)-maxStderrLogLen:]
		}
		return fmt.Errorf("%w: %s", err, msg)
	}
	return nil
}

// mockMediaRef marks a placeholder output path with the mock sentinel.
func mockMediaRef(output string) string {
	if models.IsMockReference(output) {
		return output
	}
	return "mock://" + filepath.ToSlash(output)
}

func (s *FFmpegService) mockResult(operation, output string, meta map[string]any) models.GenerationResult {
	r := models.NewMock(models.KindMedia, mockMediaRef(output))
	r.Filename = filepath.Base(output)
	r.Metadata = placeholderMeta(operation, output, meta)
	r.Metadata["actual_generation"] = fmt.Sprintf("Would run ffmpeg %s if the binary was present", operation)
	return r
}

// fallback records a failed ffmpeg invocation as placeholder output.
func (s *FFmpegService) fallback(operation, output string, meta map[string]any, cause error) models.GenerationResult {
	log.Printf("[FFmpeg] %s failed: %v", operation, cause)
	r := models.NewFallback(models.KindMedia, mockMediaRef(output), cause)
	r.Filename = filepath.Base(output)
	r.Metadata = placeholderMeta(operation, output, meta)
	r.Metadata["actual_generation"] = fmt.Sprintf("ffmpeg %s failed; placeholder substituted", operation)
	return r
}

func placeholderMeta(operation, output string, meta map[string]any) map[string]any {
	m := map[string]any{
		"operation":   operation,
		"output_path": output,
		"mock_mode":   true,
	}
	for k, v := range meta {
		m[k] = v
	}
	return m
}

func (s *FFmpegService) success(operation, output string, meta map[string]any) models.GenerationResult {
	r := models.NewSuccess(models.KindMedia, output)
	r.Filename = filepath.Base(output)
	r.Metadata = map[string]any{"operation": operation, "output_path": output}
	for k, v := range meta {
		r.Metadata[k] = v
	}
	return r
}

// Stitch joins clips in order. TransitionFade re-encodes each clip with a
// half-second fade in and out, anything else is a straight concat.
func (s *FFmpegService) Stitch(ctx context.Context, files []string, output, transition string) models.GenerationResult {
	if len(files) == 0 {
		return models.NewFailure(models.KindMedia, fmt.Errorf("no clips to stitch"))
	}
	if transition == "" {
		transition = TransitionFade
	}
	meta := map[string]any{"clips": len(files), "transition": transition}

	if s.mockMode {
		meta["duration"] = len(files) * mockClipSeconds
		meta["file_size"] = mockStitchFileSize
		r := s.mockResult("stitch", output, meta)
		r.Duration = float64(len(files) * mockClipSeconds)
		return r
	}

	log.Printf("[FFmpeg] Stitching %d clips (transition=%s)", len(files), transition)

	var err error
	if transition == TransitionFade {
		err = s.stitchWithFade(ctx, files, output)
	} else {
		err = s.concat(ctx, files, output)
	}
	if err != nil {
		return s.fallback("stitch", output, meta, err)
	}

	r := s.success("stitch", output, meta)
	if d, derr := s.VideoDuration(ctx, output); derr == nil {
		r.Duration = d
		r.Metadata["duration"] = d
	}
	if info, serr := os.Stat(output); serr == nil {
		r.Metadata["file_size"] = info.Size()
	}
	return r
}

func (s *FFmpegService) stitchWithFade(ctx context.Context, files []string, output string) error {
	var args []string
	var filters []string
	var labels strings.Builder

	for i, f := range files {
		args = append(args, "-i", f)

		clipLen := float64(mockClipSeconds)
		if d, err := s.VideoDuration(ctx, f); err == nil && d > 2*fadeSeconds {
			clipLen = d
		}
		preset := Preset(DefaultPlatform)
		filters = append(filters, fmt.Sprintf(
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fade=t=in:st=0:d=%.1f,fade=t=out:st=%.2f:d=%.1f[v%d]",
			i, preset.Width, preset.Height, preset.Width, preset.Height, fadeSeconds, clipLen-fadeSeconds, fadeSeconds, i,
		))
		fmt.Fprintf(&labels, "[v%d]", i)
	}
	filters = append(filters, fmt.Sprintf("%sconcat=n=%d:v=1:a=0[outv]", labels.String(), len(files)))

	args = append(args,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", "[outv]",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-y",
		output,
	)
	if err := s.run(ctx, output, args...); err != nil {
		return fmt.Errorf("ffmpeg fade stitch failed: %w", err)
	}
	return nil
}

// concat combines clips with the concat demuxer, without re-encoding.
func (s *FFmpegService) concat(ctx context.Context, files []string, output string) error {
	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	list, err := os.CreateTemp(s.tempDir, "concat_*.txt")
	if err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}
	defer os.Remove(list.Name())

	for _, path := range files {
		abs, aerr := filepath.Abs(path)
		if aerr != nil {
			abs = path
		}
		fmt.Fprintf(list, "file '%s'\n", strings.ReplaceAll(abs, "'", "'\\''"))
	}
	list.Close()

	if err := s.run(ctx, output, "-f", "concat", "-safe", "0", "-i", list.Name(), "-c", "copy", "-y", output); err != nil {
		return fmt.Errorf("ffmpeg concatenate failed: %w", err)
	}
	return nil
}

// AddAudioTrack mixes audio under the existing soundtrack of video at
// volume (0..1).
func (s *FFmpegService) AddAudioTrack(ctx context.Context, video, audio, output string, volume float64) models.GenerationResult {
	if volume <= 0 {
		volume = 0.8
	}
	meta := map[string]any{"audio_added": audio, "volume": volume}
	if s.mockMode {
		return s.mockResult("add_audio", output, meta)
	}

	filter := fmt.Sprintf("[1:a]volume=%.2f[a1];[0:a][a1]amix=inputs=2:duration=first[aout]", volume)
	err := s.run(ctx, output,
		"-i", video,
		"-i", audio,
		"-filter_complex", filter,
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-y",
		output,
	)
	if err != nil {
		return s.fallback("add_audio", output, meta, fmt.Errorf("ffmpeg add audio failed: %w", err))
	}
	return s.success("add_audio", output, meta)
}

// MixLayers lays every audio layer under video, delayed to its start time
// and scaled to its volume. The mix ends with the first input.
func (s *FFmpegService) MixLayers(ctx context.Context, video string, layers []models.AudioLayer, output string) models.GenerationResult {
	meta := map[string]any{"audio_layers_mixed": len(layers)}
	if s.mockMode {
		return s.mockResult("mix", output, meta)
	}

	if len(layers) == 0 {
		data, err := os.ReadFile(video)
		if err == nil {
			err = writeFile(output, data)
		}
		if err != nil {
			return s.fallback("mix", output, meta, err)
		}
		meta["note"] = "No audio layers to mix"
		return s.success("mix", output, meta)
	}

	args := []string{"-i", video}
	var filters []string
	var inputs strings.Builder
	for i, layer := range layers {
		idx := i + 1
		args = append(args, "-i", layer.File)

		volume := layer.Volume
		if volume <= 0 {
			volume = 100
		}
		delay := models.TimecodeMillis(layer.StartTime)
		filters = append(filters, fmt.Sprintf("[%d:a]adelay=%d|%d,volume=%.2f[a%d]", idx, delay, delay, float64(volume)/100, idx))
		fmt.Fprintf(&inputs, "[a%d]", idx)
	}
	filters = append(filters, fmt.Sprintf("%samix=inputs=%d:duration=first:normalize=0[aout]", inputs.String(), len(layers)))

	args = append(args,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-y",
		output,
	)

	log.Printf("[FFmpeg] Mixing %d audio layers", len(layers))
	if err := s.run(ctx, output, args...); err != nil {
		return s.fallback("mix", output, meta, fmt.Errorf("ffmpeg mix failed: %w", err))
	}
	return s.success("mix", output, meta)
}

// OverlayText draws text at a named position. A zero duration keeps the text
// on screen for the whole clip.
func (s *FFmpegService) OverlayText(ctx context.Context, video, text, output, position string, start, duration float64) models.GenerationResult {
	meta := map[string]any{"text_added": text, "position": position}
	if s.mockMode {
		return s.mockResult("overlay_text", output, meta)
	}

	pos, ok := overlayPositions[position]
	if !ok {
		pos = overlayPositions["center"]
	}
	filter := fmt.Sprintf("drawtext=text='%s':fontsize=%d:fontcolor=white:box=1:boxcolor=black@0.5:boxborderw=5:%s",
		escapeDrawText(text), defaultOverlayFont, pos)
	if duration > 0 {
		filter += fmt.Sprintf(":enable='between(t,%.2f,%.2f)'", start, start+duration)
	}

	if err := s.run(ctx, output, "-i", video, "-vf", filter, "-codec:a", "copy", "-y", output); err != nil {
		return s.fallback("overlay_text", output, meta, fmt.Errorf("ffmpeg text overlay failed: %w", err))
	}
	return s.success("overlay_text", output, meta)
}

// BurnCaptions renders an ASS subtitle file into the picture.
func (s *FFmpegService) BurnCaptions(ctx context.Context, video, assPath, output string) models.GenerationResult {
	meta := map[string]any{"subtitles": assPath}
	if s.mockMode {
		return s.mockResult("burn_captions", output, meta)
	}

	log.Printf("[FFmpeg] Burning in subtitles from %s", assPath)
	vf := fmt.Sprintf("ass='%s'", escapeFFmpegFilterPath(assPath))
	err := s.run(ctx, output,
		"-i", video,
		"-vf", vf,
		"-c:v", "libx264",
		"-c:a", "copy",
		"-pix_fmt", "yuv420p",
		"-y",
		output,
	)
	if err != nil {
		return s.fallback("burn_captions", output, meta, fmt.Errorf("ffmpeg caption burn failed: %w", err))
	}
	return s.success("burn_captions", output, meta)
}

// OptimizeForPlatform re-encodes video to the platform preset and reports
// whether the file fits the platform's size limit.
func (s *FFmpegService) OptimizeForPlatform(ctx context.Context, video, platform, output string) models.GenerationResult {
	preset := Preset(platform)
	meta := map[string]any{
		"platform":   preset.Name,
		"resolution": preset.Resolution(),
		"fps":        preset.FPS,
		"bitrate":    preset.Bitrate,
	}
	if s.mockMode {
		meta["file_size_mb"] = mockOptimizedSizeMB
		meta["within_limit"] = true
		return s.mockResult("optimize", output, meta)
	}

	res := preset.Resolution()
	scale := fmt.Sprintf("scale=%s:force_original_aspect_ratio=decrease,pad=%s:(ow-iw)/2:(oh-ih)/2",
		strings.Replace(res, "x", ":", 1), strings.Replace(res, "x", ":", 1))

	log.Printf("[FFmpeg] Optimizing for %s (%s @ %dfps, %s)", preset.Name, res, preset.FPS, preset.Bitrate)
	err := s.run(ctx, output,
		"-i", video,
		"-vf", scale,
		"-r", strconv.Itoa(preset.FPS),
		"-b:v", preset.Bitrate,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-y",
		output,
	)
	if err != nil {
		return s.fallback("optimize", output, meta, fmt.Errorf("ffmpeg optimize failed: %w", err))
	}

	info, err := os.Stat(output)
	if err != nil {
		return s.fallback("optimize", output, meta, err)
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)
	meta["file_size_mb"] = math.Round(sizeMB*100) / 100
	meta["within_limit"] = sizeMB <= preset.MaxSizeMB
	return s.success("optimize", output, meta)
}

// VideoDuration returns the duration of a media file in seconds using ffprobe.
func (s *FFmpegService) VideoDuration(ctx context.Context, path string) (float64, error) {
	if s.ffprobePath == "" {
		return 0, fmt.Errorf("ffprobe not available")
	}
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	output, err := exec.CommandContext(ctx, s.ffprobePath, args...).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe video duration failed: %w", err)
	}

	durationSec, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse video duration: %w", err)
	}
	return durationSec, nil
}

// escapeFFmpegFilterPath escapes special characters in file paths for FFmpeg filter syntax.
// FFmpeg filter strings treat colons, backslashes, and single quotes specially.
func escapeFFmpegFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "\\\\")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "'\\''")
	return path
}

func escapeDrawText(text string) string {
	text = strings.ReplaceAll(text, "\\", "\\\\")
	text = strings.ReplaceAll(text, ":", "\\:")
	text = strings.ReplaceAll(text, "'", "’")
	text = strings.ReplaceAll(text, "%", "\\%")
	return text
}
