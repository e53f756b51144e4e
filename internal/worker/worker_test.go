package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/viralforge/internal/models"
	"github.com/bobarin/viralforge/internal/queue"
	"github.com/bobarin/viralforge/internal/storage"
)

type fakeStore struct {
	mu       sync.Mutex
	runs     map[uuid.UUID]*models.Run
	assets   []models.RunAsset
	updates  map[uuid.UUID]models.RunUpdate
	finished chan uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		runs:     make(map[uuid.UUID]*models.Run),
		updates:  make(map[uuid.UUID]models.RunUpdate),
		finished: make(chan uuid.UUID, 8),
	}
}

func (s *fakeStore) CreateRun(_ context.Context, run *models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.CreatedAt = time.Now()
	s.runs[run.ID] = run
	return nil
}

func (s *fakeStore) GetRun(_ context.Context, id uuid.UUID) (*models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, errors.New("run not found")
	}
	cp := *run
	return &cp, nil
}

func (s *fakeStore) MarkRunRunning(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[id].Status = models.RunStatusRunning
	return nil
}

func (s *fakeStore) FinishRun(_ context.Context, id uuid.UUID, update models.RunUpdate) error {
	s.mu.Lock()
	s.runs[id].Status = update.Status
	s.updates[id] = update
	s.mu.Unlock()
	s.finished <- id
	return nil
}

func (s *fakeStore) CreateRunAsset(_ context.Context, asset *models.RunAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets = append(s.assets, *asset)
	return nil
}

func (s *fakeStore) queued(t *testing.T, brief models.Brief) uuid.UUID {
	t.Helper()
	run, err := Submit(context.Background(), s, &fakeQueue{}, brief, "test")
	require.NoError(t, err)
	return run.ID
}

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []uuid.UUID
	sources  []string
	jobs     chan *queue.Job
	err      error
}

func (q *fakeQueue) EnqueueRun(_ context.Context, runID uuid.UUID, source string) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, runID)
	q.sources = append(q.sources, source)
	return nil
}

func (q *fakeQueue) NextRun(ctx context.Context, timeout time.Duration) (*queue.Job, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, nil
	}
}

type fakeRunner struct {
	bundle  *models.OutputBundle
	dir     string
	err     error
	briefs  []models.Brief
	workDir string // removed on Cleanup when set
	cleaned []string
}

func (r *fakeRunner) Run(_ context.Context, brief models.Brief) (*models.OutputBundle, string, error) {
	r.briefs = append(r.briefs, brief)
	return r.bundle, r.dir, r.err
}

func (r *fakeRunner) Cleanup(runID string) error {
	r.cleaned = append(r.cleaned, runID)
	if r.workDir != "" {
		return os.RemoveAll(r.workDir)
	}
	return nil
}

type fakeUploader struct {
	objects  []storage.Object
	err      error
	prefixes []string
	files    []string
}

func (u *fakeUploader) UploadBundle(_ context.Context, _ afero.Fs, _ string, prefix string) ([]storage.Object, error) {
	u.prefixes = append(u.prefixes, prefix)
	return u.objects, u.err
}

func (u *fakeUploader) UploadFile(_ context.Context, storagePath, localPath string, _ string) error {
	if _, err := os.Stat(localPath); err != nil {
		return err
	}
	u.files = append(u.files, storagePath)
	return nil
}

func (u *fakeUploader) GenerateStoragePath(prefix, rel string) string {
	return prefix + "/" + rel
}

func okBundle() *models.OutputBundle {
	final := models.NewMock(models.KindMedia, "mock:///tmp/optimized_tiktok.mp4")
	return &models.OutputBundle{
		RunID:         "bundle-1",
		Topic:         "minimalist hoodies",
		PlanValidated: true,
		Stages: []models.StageTrace{
			{Name: "trend_analysis", Outcome: models.OutcomeMock},
		},
		GeneratedAssets: models.GeneratedAssets{
			Videos: []models.GenerationResult{
				models.NewMock(models.KindVideo, "https://mock-veo3-output.com/videos/a.mp4"),
				models.NewFailure(models.KindVideo, errors.New("quota")),
			},
			Audio:       &models.ProcessedAudio{VoiceoverTracks: make([]models.GenerationResult, 6)},
			FinalOutput: &final,
		},
	}
}

func TestHandleRun_Completed(t *testing.T) {
	store := newFakeStore()
	id := store.queued(t, models.Brief{Topic: "minimalist hoodies", Custom: "for cats", Platform: "tiktok"})
	runner := &fakeRunner{bundle: okBundle(), dir: "output/viral_video_1"}

	w := New(store, &fakeQueue{}, runner, afero.NewMemMapFs())
	require.NoError(t, w.HandleRun(context.Background(), id))

	require.Len(t, runner.briefs, 1)
	assert.Equal(t, "for cats", runner.briefs[0].Custom)

	update := store.updates[id]
	assert.Equal(t, models.RunStatusCompleted, update.Status)
	require.NotNil(t, update.RunDir)
	assert.Equal(t, "output/viral_video_1", *update.RunDir)
	assert.Nil(t, update.StoragePrefix)
	assert.Nil(t, update.ErrorMessage)
	assert.Equal(t, 2, update.Summary["videos"])
	assert.Equal(t, 1, update.Summary["videos_ok"])
	assert.Equal(t, 6, update.Summary["voiceovers"])
	assert.Equal(t, "mock_success", update.Summary["final_output"])
	assert.Empty(t, store.assets)
}

func TestHandleRun_PartialBundle(t *testing.T) {
	store := newFakeStore()
	id := store.queued(t, models.Brief{Topic: "socks"})
	b := okBundle()
	b.Error = "asset realization panicked: encoder exploded"

	w := New(store, &fakeQueue{}, &fakeRunner{bundle: b, dir: "out/x"}, afero.NewMemMapFs())
	require.NoError(t, w.HandleRun(context.Background(), id))

	update := store.updates[id]
	assert.Equal(t, models.RunStatusPartial, update.Status)
	require.NotNil(t, update.ErrorMessage)
	assert.Contains(t, *update.ErrorMessage, "encoder exploded")
}

func TestHandleRun_RunnerFailure(t *testing.T) {
	store := newFakeStore()
	id := store.queued(t, models.Brief{Topic: "socks"})

	w := New(store, &fakeQueue{}, &fakeRunner{err: errors.New("pipeline failed: concept: boom")}, afero.NewMemMapFs())
	err := w.HandleRun(context.Background(), id)
	require.Error(t, err)

	update := store.updates[id]
	assert.Equal(t, models.RunStatusFailed, update.Status)
	require.NotNil(t, update.ErrorMessage)
	assert.Equal(t, "pipeline failed: concept: boom", *update.ErrorMessage)
	assert.Nil(t, update.RunDir)
}

func TestHandleRun_SkipsFinishedRuns(t *testing.T) {
	store := newFakeStore()
	id := store.queued(t, models.Brief{Topic: "socks"})
	store.runs[id].Status = models.RunStatusCompleted
	runner := &fakeRunner{bundle: okBundle()}

	w := New(store, &fakeQueue{}, runner, afero.NewMemMapFs())
	require.NoError(t, w.HandleRun(context.Background(), id))
	assert.Empty(t, runner.briefs)
}

func TestHandleRun_UploadsBundle(t *testing.T) {
	store := newFakeStore()
	id := store.queued(t, models.Brief{Topic: "socks"})

	finalPath := filepath.Join(t.TempDir(), "optimized_tiktok.mp4")
	require.NoError(t, os.WriteFile(finalPath, []byte("mp4"), 0o644))
	b := okBundle()
	live := models.NewSuccess(models.KindMedia, finalPath)
	b.GeneratedAssets.FinalOutput = &live

	prefix := id.String()
	up := &fakeUploader{objects: []storage.Object{
		{Path: prefix + "/production_plan.json", LocalPath: "out/x/production_plan.json", ContentType: "application/json", Size: 10},
		{Path: prefix + "/generation_log.json", LocalPath: "out/x/generation_log.json", ContentType: "application/json", Size: 20},
		{Path: prefix + "/assets/scene_1_metadata.json", LocalPath: "out/x/assets/scene_1_metadata.json", ContentType: "application/json", Size: 5},
		{Path: prefix + "/notes.txt", LocalPath: "out/x/notes.txt", ContentType: "text/plain", Size: 1},
	}}

	w := New(store, &fakeQueue{}, &fakeRunner{bundle: b, dir: "out/x"}, afero.NewMemMapFs()).WithUploader(up, "runs")
	require.NoError(t, w.HandleRun(context.Background(), id))

	assert.Equal(t, []string{prefix}, up.prefixes)
	assert.Equal(t, []string{prefix + "/final.mp4"}, up.files)

	update := store.updates[id]
	assert.Equal(t, models.RunStatusCompleted, update.Status)
	require.NotNil(t, update.StoragePrefix)
	assert.Equal(t, prefix, *update.StoragePrefix)

	types := make([]models.AssetType, 0, len(store.assets))
	for _, a := range store.assets {
		types = append(types, a.Type)
		assert.Equal(t, "runs", a.StorageBucket)
		assert.Equal(t, id, a.RunID)
	}
	assert.Equal(t, []models.AssetType{
		models.AssetTypePlanJSON,
		models.AssetTypeGenerationLog,
		models.AssetTypeSceneMetadata,
		models.AssetTypeFinalVideo,
	}, types)
	assert.Equal(t, int64(3), *store.assets[3].ByteSize)
}

func TestHandleRun_CleansWorkDirAfterUpload(t *testing.T) {
	store := newFakeStore()
	id := store.queued(t, models.Brief{Topic: "socks"})

	workDir := filepath.Join(t.TempDir(), "bundle-1")
	require.NoError(t, os.MkdirAll(workDir, 0o755))
	finalPath := filepath.Join(workDir, "optimized_tiktok.mp4")
	require.NoError(t, os.WriteFile(finalPath, []byte("mp4"), 0o644))

	b := okBundle()
	live := models.NewSuccess(models.KindMedia, finalPath)
	b.GeneratedAssets.FinalOutput = &live

	runner := &fakeRunner{bundle: b, dir: "out/x", workDir: workDir}
	up := &fakeUploader{}
	w := New(store, &fakeQueue{}, runner, afero.NewMemMapFs()).WithUploader(up, "runs")
	require.NoError(t, w.HandleRun(context.Background(), id))

	assert.Equal(t, []string{id.String() + "/final.mp4"}, up.files, "the final video is uploaded before the work dir goes")
	assert.Equal(t, models.RunStatusCompleted, store.updates[id].Status)
	assert.Equal(t, []string{"bundle-1"}, runner.cleaned)
	_, err := os.Stat(workDir)
	assert.True(t, os.IsNotExist(err))
}

func TestHandleRun_CleansWorkDirWithoutUploader(t *testing.T) {
	store := newFakeStore()
	id := store.queued(t, models.Brief{Topic: "socks"})
	runner := &fakeRunner{bundle: okBundle(), dir: "out/x"}

	w := New(store, &fakeQueue{}, runner, afero.NewMemMapFs())
	require.NoError(t, w.HandleRun(context.Background(), id))
	assert.Equal(t, []string{"bundle-1"}, runner.cleaned)
}

func TestHandleRun_UploadFailureIsPartial(t *testing.T) {
	store := newFakeStore()
	id := store.queued(t, models.Brief{Topic: "socks"})
	up := &fakeUploader{err: errors.New("bucket missing")}

	w := New(store, &fakeQueue{}, &fakeRunner{bundle: okBundle(), dir: "out/x"}, afero.NewMemMapFs()).WithUploader(up, "runs")
	require.NoError(t, w.HandleRun(context.Background(), id))

	update := store.updates[id]
	assert.Equal(t, models.RunStatusPartial, update.Status)
	require.NotNil(t, update.ErrorMessage)
	assert.Contains(t, *update.ErrorMessage, "bucket missing")
	assert.Nil(t, update.StoragePrefix)
}

func TestSubmit(t *testing.T) {
	store := newFakeStore()
	q := &fakeQueue{}

	run, err := SubmitFromAPI(context.Background(), store, q, models.Brief{Topic: "hats", Custom: "wool hats for dogs", BurnCaptions: true})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusQueued, run.Status)
	require.NotNil(t, run.Brief)
	assert.Equal(t, "wool hats for dogs", *run.Brief)
	assert.True(t, run.BurnCaptions)
	assert.Equal(t, []uuid.UUID{run.ID}, q.enqueued)
	assert.Equal(t, []string{"api"}, q.sources)
	assert.Contains(t, store.runs, run.ID)
}

func TestSubmit_EnqueueError(t *testing.T) {
	store := newFakeStore()
	_, err := Submit(context.Background(), store, &fakeQueue{err: errors.New("redis down")}, models.Brief{Topic: "hats"}, "api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")

	require.Len(t, store.runs, 1)
	for id, run := range store.runs {
		assert.Equal(t, models.RunStatusFailed, run.Status, "a run that never reached the queue must not stay queued")
		require.NotNil(t, store.updates[id].ErrorMessage)
		assert.Contains(t, *store.updates[id].ErrorMessage, "redis down")
	}
}

func TestAssetTypeFor(t *testing.T) {
	cases := map[string]models.AssetType{
		"out/production_plan.json":          models.AssetTypePlanJSON,
		"out/generation_log.json":           models.AssetTypeGenerationLog,
		"out/README.md":                     models.AssetTypeReadme,
		"out/assets/audio_script.json":      models.AssetTypeAudioScript,
		"out/assets/scene_12_metadata.json": models.AssetTypeSceneMetadata,
	}
	for path, want := range cases {
		got, ok := AssetTypeFor(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}

	_, ok := AssetTypeFor("out/stray.txt")
	assert.False(t, ok)
}

func TestStart_ProcessesQueuedRuns(t *testing.T) {
	store := newFakeStore()
	id := store.queued(t, models.Brief{Topic: "socks"})
	q := &fakeQueue{jobs: make(chan *queue.Job, 1)}
	q.jobs <- &queue.Job{ID: uuid.New(), Type: queue.JobTypeRun, RunID: id, Source: "test"}

	w := New(store, q, &fakeRunner{bundle: okBundle(), dir: "out/x"}, afero.NewMemMapFs())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx, 2)
		close(done)
	}()

	select {
	case got := <-store.finished:
		assert.Equal(t, id, got)
	case <-time.After(5 * time.Second):
		t.Fatal("run was not processed")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
	assert.Equal(t, models.RunStatusCompleted, store.runs[id].Status)
}
