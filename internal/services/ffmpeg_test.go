package services

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/viralforge/internal/config"
	"github.com/bobarin/viralforge/internal/models"
)

func newMockFFmpeg(t *testing.T) *FFmpegService {
	t.Helper()
	svc := NewFFmpegService(config.MediaConfig{
		FFmpegPath: filepath.Join(t.TempDir(), "no-such-ffmpeg"),
		TempDir:    t.TempDir(),
	})
	require.True(t, svc.MockMode())
	return svc
}

func TestPreset(t *testing.T) {
	tests := []struct {
		platform string
		want     string
		width    int
		maxMB    float64
	}{
		{"tiktok", "tiktok", 1080, 287},
		{"Instagram_Reels", "instagram_reels", 1080, 100},
		{"youtube_shorts", "youtube_shorts", 1080, 100},
		{"twitter", "twitter", 1280, 512},
		{"myspace", "tiktok", 1080, 287},
		{"", "tiktok", 1080, 287},
	}
	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			p := Preset(tt.platform)
			assert.Equal(t, tt.want, p.Name)
			assert.Equal(t, tt.width, p.Width)
			assert.Equal(t, tt.maxMB, p.MaxSizeMB)
		})
	}
	assert.Equal(t, "3.5M", Preset("instagram_reels").Bitrate)
	assert.Equal(t, "1280x720", Preset("twitter").Resolution())
}

func TestKnownPlatform(t *testing.T) {
	assert.True(t, KnownPlatform(" YouTube_Shorts "))
	assert.False(t, KnownPlatform("myspace"))
}

func TestPlatformPresetsSorted(t *testing.T) {
	presets := PlatformPresets()
	require.Len(t, presets, 4)
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"instagram_reels", "tiktok", "twitter", "youtube_shorts"}, names)
}

func TestFFmpeg_MockStitch(t *testing.T) {
	svc := newMockFFmpeg(t)
	out := filepath.Join(t.TempDir(), "stitched.mp4")

	r := svc.Stitch(context.Background(), []string{"a.mp4", "b.mp4", "c.mp4"}, out, "")

	require.NoError(t, r.Validate())
	assert.Equal(t, models.StatusMockSuccess, r.Status)
	assert.True(t, r.IsMockReference())
	assert.Equal(t, 18.0, r.Duration)
	assert.Equal(t, 18, r.Metadata["duration"])
	assert.Equal(t, mockStitchFileSize, r.Metadata["file_size"])
	assert.Equal(t, TransitionFade, r.Metadata["transition"])
	assert.Equal(t, out, r.Metadata["output_path"])
}

func TestFFmpeg_StitchNothing(t *testing.T) {
	svc := newMockFFmpeg(t)
	r := svc.Stitch(context.Background(), nil, "out.mp4", TransitionNone)
	assert.Equal(t, models.StatusError, r.Status)
	assert.Contains(t, r.Error, "no clips")
}

func TestFFmpeg_MockOptimize(t *testing.T) {
	svc := newMockFFmpeg(t)
	r := svc.OptimizeForPlatform(context.Background(), "in.mp4", "unknown_platform", "final.mp4")

	require.NoError(t, r.Validate())
	assert.Equal(t, "tiktok", r.Metadata["platform"])
	assert.Equal(t, mockOptimizedSizeMB, r.Metadata["file_size_mb"])
	assert.Equal(t, true, r.Metadata["within_limit"])
	assert.Equal(t, "1080x1920", r.Metadata["resolution"])
}

func TestFFmpeg_MockOperations(t *testing.T) {
	svc := newMockFFmpeg(t)
	ctx := context.Background()

	results := map[string]models.GenerationResult{
		"add_audio":     svc.AddAudioTrack(ctx, "v.mp4", "a.mp3", "out1.mp4", 0),
		"mix":           svc.MixLayers(ctx, "v.mp4", []models.AudioLayer{{File: "vo.mp3", StartTime: "00:05", Volume: 100}}, "out2.mp4"),
		"overlay_text":  svc.OverlayText(ctx, "v.mp4", "Link in bio", "out3.mp4", "bottom", 0, 3),
		"burn_captions": svc.BurnCaptions(ctx, "v.mp4", "captions.ass", "out4.mp4"),
	}
	for op, r := range results {
		t.Run(op, func(t *testing.T) {
			require.NoError(t, r.Validate())
			assert.Equal(t, models.OutcomeMock, r.Outcome)
			assert.Equal(t, op, r.Metadata["operation"])
			assert.True(t, strings.HasPrefix(r.Artifact, "mock://"))
		})
	}
	assert.Equal(t, 1, results["mix"].Metadata["audio_layers_mixed"])
}

// newFailingFFmpeg returns a live service whose ffmpeg and ffprobe are a
// script that always exits 1.
func newFailingFFmpeg(t *testing.T) *FFmpegService {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script binaries need a unix shell")
	}
	bin := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\nexit 1\n"), 0o755))

	svc := NewFFmpegService(config.MediaConfig{
		FFmpegPath:  bin,
		FFprobePath: bin,
		TempDir:     t.TempDir(),
	})
	require.False(t, svc.MockMode())
	return svc
}

func TestFFmpeg_LiveFailureFallsBack(t *testing.T) {
	svc := newFailingFFmpeg(t)
	ctx := context.Background()
	dir := t.TempDir()

	clips := make([]string, 2)
	for i := range clips {
		clips[i] = filepath.Join(dir, "clip"+string(rune('a'+i))+".mp4")
		require.NoError(t, os.WriteFile(clips[i], []byte("not really a video"), 0o644))
	}
	voice := filepath.Join(dir, "vo.mp3")
	require.NoError(t, os.WriteFile(voice, []byte("not really audio"), 0o644))

	results := map[string]models.GenerationResult{
		"stitch_fade":   svc.Stitch(ctx, clips, filepath.Join(dir, "stitched.mp4"), TransitionFade),
		"stitch_concat": svc.Stitch(ctx, clips, filepath.Join(dir, "joined.mp4"), TransitionNone),
		"mix":           svc.MixLayers(ctx, clips[0], []models.AudioLayer{{File: voice, StartTime: "00:00", Volume: 100}}, filepath.Join(dir, "mixed.mp4")),
		"optimize":      svc.OptimizeForPlatform(ctx, clips[0], "tiktok", filepath.Join(dir, "final.mp4")),
	}
	for name, r := range results {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, r.Validate())
			assert.Equal(t, models.StatusMockSuccess, r.Status)
			assert.Equal(t, models.OutcomeFallback, r.Outcome)
			assert.Empty(t, r.Error)
			assert.NotEmpty(t, r.FallbackReason)
			assert.True(t, r.IsMockReference())
			assert.Equal(t, true, r.Metadata["mock_mode"])
		})
	}
	assert.Contains(t, results["optimize"].FallbackReason, "ffmpeg optimize failed")
	assert.Equal(t, "tiktok", results["optimize"].Metadata["platform"])
}

func TestFindBinary_ExplicitExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	bin := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	assert.Equal(t, bin, findBinary(bin, "ffmpeg"))
}

func TestFindBinary(t *testing.T) {
	assert.Equal(t, "", findBinary(filepath.Join(t.TempDir(), "missing"), "ffmpeg"))
}

func TestEscapeFFmpegFilterPath(t *testing.T) {
	assert.Equal(t, `C\:/runs/it'\''s.ass`, escapeFFmpegFilterPath("C:/runs/it's.ass"))
	assert.Equal(t, `50\% off\: today`, escapeDrawText("50% off: today"))
}
