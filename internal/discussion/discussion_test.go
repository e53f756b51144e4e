package discussion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/viralforge/internal/models"
	"github.com/bobarin/viralforge/internal/services"
)

type fakeCompleter struct {
	mu    sync.Mutex
	calls []services.CompletionRequest
	fail  func(req services.CompletionRequest) error
}

func (f *fakeCompleter) Complete(_ context.Context, req services.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.fail != nil {
		if err := f.fail(req); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("  line %d (%s)  ", len(f.calls), req.SchemaName), nil
}

type fakeVoicer struct {
	mu     sync.Mutex
	voices []string
}

func (f *fakeVoicer) GenerateVoice(_ context.Context, text, voice, emotion string) models.GenerationResult {
	f.mu.Lock()
	f.voices = append(f.voices, voice)
	f.mu.Unlock()
	r := models.NewMock(models.KindVoice, "mock_"+voice+".mp3")
	r.AudioData = []byte("MOCK_AUDIO_" + text)
	r.Voice = voice
	r.Emotion = emotion
	return r
}

func TestDefaultPanel(t *testing.T) {
	panel := DefaultPanel()
	require.Len(t, panel, 3)
	for _, sp := range panel {
		assert.Contains(t, services.Voices, sp.Voice)
		assert.NotEmpty(t, sp.Focus)
	}
}

func TestRun_Offline(t *testing.T) {
	d, err := NewHost(nil, nil, nil).Run(context.Background(), "  minimalist hoodies ", 2)
	require.NoError(t, err)

	assert.Equal(t, "minimalist hoodies", d.Topic)
	assert.Equal(t, 2, d.Rounds)
	require.Len(t, d.Entries, 9)

	kinds := make([]Kind, len(d.Entries))
	for i, e := range d.Entries {
		kinds[i] = e.Kind
		assert.Equal(t, models.OutcomeMock, e.Outcome)
		assert.Nil(t, e.Audio)
		assert.Contains(t, e.Text, "minimalist hoodies")
	}
	assert.Equal(t, []Kind{
		KindOpening, KindOpening, KindOpening,
		KindResponse, KindResponse, KindResponse,
		KindConclusion, KindConclusion, KindConclusion,
	}, kinds)
	assert.Equal(t, 1, d.Entries[0].Round)
	assert.Equal(t, 2, d.Entries[3].Round)
	assert.Equal(t, "philosopher", d.Entries[3].Speaker)
	assert.Contains(t, d.Entries[3].Text, "The Optimizer", "the first response answers the last opening")
}

func TestRun_DefaultsAndValidation(t *testing.T) {
	h := NewHost(nil, nil, nil)

	d, err := h.Run(context.Background(), "socks", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultRounds, d.Rounds)
	assert.Len(t, d.Entries, (DefaultRounds+1)*len(h.Speakers()))

	_, err = h.Run(context.Background(), " ", 2)
	assert.Error(t, err)
}

func TestRun_LiveRespondsToPreviousStatement(t *testing.T) {
	fc := &fakeCompleter{}
	d, err := NewHost(nil, fc, nil).Run(context.Background(), "hoodies", 2)
	require.NoError(t, err)
	require.Len(t, fc.calls, 9)

	assert.Equal(t, "line 1 (discussion_opening)", d.Entries[0].Text)
	assert.Equal(t, models.OutcomeSuccess, d.Entries[0].Outcome)
	assert.Contains(t, fc.calls[0].System, "The Philosopher")
	assert.Empty(t, fc.calls[0].Schema)

	assert.Contains(t, fc.calls[3].User, d.Entries[2].Text)
	assert.Contains(t, fc.calls[3].User, "The Optimizer just said")
	assert.Contains(t, fc.calls[8].User, "final thought")
}

func TestRun_BackendFailureFallsBack(t *testing.T) {
	fc := &fakeCompleter{fail: func(req services.CompletionRequest) error {
		if strings.Contains(req.System, "The Architect") {
			return errors.New("rate limited")
		}
		return nil
	}}
	d, err := NewHost(nil, fc, nil).Run(context.Background(), "hoodies", 1)
	require.NoError(t, err)

	for _, e := range d.Entries {
		if e.Speaker == "architect" {
			assert.Equal(t, models.OutcomeFallback, e.Outcome)
			assert.Equal(t, "rate limited", e.FallbackReason)
			assert.NotEmpty(t, e.Text)
		} else {
			assert.Equal(t, models.OutcomeSuccess, e.Outcome)
		}
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHost(nil, &fakeCompleter{}, nil).Run(ctx, "hoodies", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_VoicesEachSpeaker(t *testing.T) {
	fv := &fakeVoicer{}
	d, err := NewHost(nil, nil, fv).Run(context.Background(), "hoodies", 1)
	require.NoError(t, err)

	require.Len(t, fv.voices, 6)
	for _, e := range d.Entries {
		require.NotNil(t, e.Audio)
		assert.NotEmpty(t, e.Audio.AudioData)
	}
	assert.Equal(t, "philosophy_bro", d.Entries[0].Audio.Voice)
	assert.Equal(t, "calm", d.Entries[0].Audio.Emotion)
}

func TestQuickTakes(t *testing.T) {
	fc := &fakeCompleter{}
	d, err := NewHost(nil, fc, nil).QuickTakes(context.Background(), "hoodies")
	require.NoError(t, err)

	assert.True(t, d.QuickTakes())
	require.Len(t, d.Entries, 3)
	assert.Len(t, fc.calls, 3)
	for i, sp := range DefaultPanel() {
		assert.Equal(t, sp.Name, d.Entries[i].Speaker, "takes keep panel order")
		assert.Equal(t, KindTake, d.Entries[i].Kind)
		assert.Contains(t, d.Entries[i].Text, "discussion_take")
	}
}

func TestMarkdown(t *testing.T) {
	d, err := NewHost(nil, nil, nil).Run(context.Background(), "hoodies", 2)
	require.NoError(t, err)

	md := Markdown(d)
	assert.True(t, strings.HasPrefix(md, "# Podcast Discussion: hoodies\n\n**Rounds:** 2\n\n---\n"))
	assert.Equal(t, 1, strings.Count(md, "## Round 1\n"))
	assert.Equal(t, 1, strings.Count(md, "## Round 2\n"))
	assert.Equal(t, 1, strings.Count(md, "## Final Thoughts\n"))
	assert.Equal(t, 3, strings.Count(md, "### The Architect\n"))
	assert.Less(t, strings.Index(md, "## Round 2"), strings.Index(md, "## Final Thoughts"))

	takes, err := NewHost(nil, nil, nil).QuickTakes(context.Background(), "hoodies")
	require.NoError(t, err)
	md = Markdown(takes)
	assert.True(t, strings.HasPrefix(md, "# Quick Takes: hoodies\n"))
	assert.NotContains(t, md, "**Rounds:**")
}

func TestSaveTranscriptAndAudio(t *testing.T) {
	fs := afero.NewMemMapFs()
	d, err := NewHost(nil, nil, &fakeVoicer{}).Run(context.Background(), "Quiet Luxury: Hoodies!", 1)
	require.NoError(t, err)

	path := TranscriptPath("outputs", d.Topic)
	assert.Equal(t, "outputs/podcast_quiet_luxury_hoodies.md", path)
	require.NoError(t, SaveTranscript(fs, d, path))

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, Markdown(d), string(data))

	paths, err := SaveAudio(fs, d, "outputs/podcast_audio")
	require.NoError(t, err)
	require.Len(t, paths, 6)
	assert.Equal(t, "outputs/podcast_audio/01_philosopher.mp3", paths[0])
	audio, err := afero.ReadFile(fs, paths[0])
	require.NoError(t, err)
	assert.Equal(t, d.Entries[0].Audio.AudioData, audio)
}

func TestSaveAudio_NothingVoiced(t *testing.T) {
	fs := afero.NewMemMapFs()
	d, err := NewHost(nil, nil, nil).QuickTakes(context.Background(), "hoodies")
	require.NoError(t, err)

	paths, err := SaveAudio(fs, d, "audio")
	require.NoError(t, err)
	assert.Empty(t, paths)
	exists, err := afero.DirExists(fs, "audio")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "discussion", slug("  !!! "))
	assert.Equal(t, "ai_in_2026", slug("AI in 2026?"))
	assert.LessOrEqual(t, len(slug(strings.Repeat("long topic ", 20))), maxSlugLen)
}
