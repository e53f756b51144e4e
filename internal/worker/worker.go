package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"

	"github.com/bobarin/viralforge/internal/artifacts"
	"github.com/bobarin/viralforge/internal/models"
	"github.com/bobarin/viralforge/internal/queue"
	"github.com/bobarin/viralforge/internal/storage"
)

const (
	pollTimeout    = 5 * time.Second
	finalVideoName = "final.mp4"
	sourceAPI      = "api"
	sourceSchedule = "schedule"
)

// RunStore is the slice of the database the worker needs.
type RunStore interface {
	RunCreator
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	MarkRunRunning(ctx context.Context, id uuid.UUID) error
	CreateRunAsset(ctx context.Context, asset *models.RunAsset) error
}

// RunCreator records new runs. FinishRun closes a run that never reached
// the queue.
type RunCreator interface {
	CreateRun(ctx context.Context, run *models.Run) error
	FinishRun(ctx context.Context, id uuid.UUID, update models.RunUpdate) error
}

type RunEnqueuer interface {
	EnqueueRun(ctx context.Context, runID uuid.UUID, source string) error
}

// JobSource hands out queued runs.
type JobSource interface {
	NextRun(ctx context.Context, timeout time.Duration) (*queue.Job, error)
}

// Runner executes one run and returns its bundle and bundle directory.
// Cleanup drops the media a run left in its work directory.
type Runner interface {
	Run(ctx context.Context, brief models.Brief) (*models.OutputBundle, string, error)
	Cleanup(runID string) error
}

// Uploader copies finished bundles to object storage.
type Uploader interface {
	UploadBundle(ctx context.Context, fs afero.Fs, dir, prefix string) ([]storage.Object, error)
	UploadFile(ctx context.Context, storagePath, localPath string, contentType string) error
	GenerateStoragePath(prefix, rel string) string
}

type Worker struct {
	store    RunStore
	jobs     JobSource
	runner   Runner
	fs       afero.Fs // filesystem the runner writes bundles to
	uploader Uploader // nil = bundles stay on the worker
	bucket   string
}

func New(store RunStore, jobs JobSource, runner Runner, fs afero.Fs) *Worker {
	return &Worker{
		store:  store,
		jobs:   jobs,
		runner: runner,
		fs:     fs,
	}
}

// WithUploader enables bundle upload to bucket after each run.
func (w *Worker) WithUploader(u Uploader, bucket string) *Worker {
	w.uploader = u
	w.bucket = bucket
	return w
}

// Start runs concurrency consumers until ctx is cancelled.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}
	log.Printf("[Worker] Started with concurrency: %d", concurrency)

	p := pool.New().WithMaxGoroutines(concurrency)
	for i := 0; i < concurrency; i++ {
		p.Go(func() {
			w.processQueue(ctx)
		})
	}
	p.Wait()

	log.Println("[Worker] Shut down")
}

func (w *Worker) processQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.jobs.NextRun(ctx, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[Worker] Error dequeuing run: %v", err)
			continue
		}
		if job == nil {
			continue
		}

		log.Printf("[Worker] Processing job %s (run: %s, source: %s)", job.ID, job.RunID, job.Source)
		if err := w.HandleRun(ctx, job.RunID); err != nil {
			log.Printf("[Worker] Run %s failed: %v", job.RunID, err)
		} else {
			log.Printf("[Worker] Run %s finished", job.RunID)
		}
	}
}

// HandleRun executes a queued run and records how it ended. A run that
// already finished is left alone.
func (w *Worker) HandleRun(ctx context.Context, runID uuid.UUID) error {
	run, err := w.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if finished(run.Status) {
		log.Printf("[Worker] Run %s already %s, skipping", runID, run.Status)
		return nil
	}

	if err := w.store.MarkRunRunning(ctx, runID); err != nil {
		return fmt.Errorf("failed to mark run running: %w", err)
	}

	bundle, dir, runErr := w.runner.Run(ctx, run.BriefOf())
	if bundle != nil {
		defer w.cleanup(runID, bundle.RunID)
	}
	if runErr != nil {
		update := models.RunUpdate{
			Status:       models.RunStatusFailed,
			ErrorMessage: strPtr(runErr.Error()),
		}
		if dir != "" {
			update.RunDir = &dir
		}
		if bundle != nil {
			update.Summary = Summarize(bundle)
		}
		if err := w.finish(runID, update); err != nil {
			return errors.Join(runErr, err)
		}
		return runErr
	}

	update := models.RunUpdate{
		Status:  models.RunStatusCompleted,
		RunDir:  &dir,
		Summary: Summarize(bundle),
	}
	if !bundle.Complete() {
		update.Status = models.RunStatusPartial
		update.ErrorMessage = strPtr(bundle.Error)
	}

	if w.uploader != nil {
		prefix := runID.String()
		if err := w.upload(ctx, runID, bundle, dir, prefix); err != nil {
			log.Printf("[Worker] Run %s: upload failed: %v", runID, err)
			update.Status = models.RunStatusPartial
			update.ErrorMessage = strPtr(fmt.Sprintf("upload failed: %v", err))
		} else {
			update.StoragePrefix = &prefix
		}
	}

	return w.finish(runID, update)
}

// cleanup runs after the upload: the final video is read from the work dir.
func (w *Worker) cleanup(runID uuid.UUID, bundleRunID string) {
	if err := w.runner.Cleanup(bundleRunID); err != nil {
		log.Printf("[Worker] Run %s: %v", runID, err)
	}
}

// finish records the outcome even when the run's context was cancelled.
func (w *Worker) finish(runID uuid.UUID, update models.RunUpdate) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.store.FinishRun(ctx, runID, update); err != nil {
		return fmt.Errorf("failed to record run result: %w", err)
	}
	return nil
}

func (w *Worker) upload(ctx context.Context, runID uuid.UUID, bundle *models.OutputBundle, dir, prefix string) error {
	objects, err := w.uploader.UploadBundle(ctx, w.fs, dir, prefix)
	if err != nil {
		return err
	}

	for _, obj := range objects {
		assetType, ok := AssetTypeFor(obj.LocalPath)
		if !ok {
			continue
		}
		asset := &models.RunAsset{
			ID:            uuid.New(),
			RunID:         runID,
			Type:          assetType,
			StorageBucket: w.bucket,
			StoragePath:   obj.Path,
			ContentType:   strPtr(obj.ContentType),
			ByteSize:      int64Ptr(obj.Size),
		}
		if err := w.store.CreateRunAsset(ctx, asset); err != nil {
			return fmt.Errorf("failed to save asset %s: %w", obj.Path, err)
		}
	}

	// Only a live render leaves a real file behind; mock references stay in the log.
	final := bundle.GeneratedAssets.FinalOutput
	if final == nil || final.Outcome != models.OutcomeSuccess || final.Artifact == "" {
		return nil
	}
	info, err := os.Stat(final.Artifact)
	if err != nil {
		log.Printf("[Worker] Run %s: final video %s not found, skipping upload", runID, final.Artifact)
		return nil
	}

	storagePath := w.uploader.GenerateStoragePath(prefix, finalVideoName)
	if err := w.uploader.UploadFile(ctx, storagePath, final.Artifact, "video/mp4"); err != nil {
		return fmt.Errorf("failed to upload final video: %w", err)
	}
	return w.store.CreateRunAsset(ctx, &models.RunAsset{
		ID:            uuid.New(),
		RunID:         runID,
		Type:          models.AssetTypeFinalVideo,
		StorageBucket: w.bucket,
		StoragePath:   storagePath,
		ContentType:   strPtr("video/mp4"),
		ByteSize:      int64Ptr(info.Size()),
	})
}

// AssetTypeFor classifies a bundle file by name.
func AssetTypeFor(path string) (models.AssetType, bool) {
	name := filepath.Base(path)
	switch {
	case name == artifacts.PlanFile:
		return models.AssetTypePlanJSON, true
	case name == artifacts.LogFile:
		return models.AssetTypeGenerationLog, true
	case name == artifacts.ReadmeFile:
		return models.AssetTypeReadme, true
	case name == artifacts.AudioScriptFile:
		return models.AssetTypeAudioScript, true
	case strings.HasPrefix(name, "scene_") && strings.HasSuffix(name, "_metadata.json"):
		return models.AssetTypeSceneMetadata, true
	}
	return "", false
}

// Summarize condenses a bundle into the run's summary column.
func Summarize(bundle *models.OutputBundle) models.JSONB {
	assets := bundle.GeneratedAssets
	videosOK := 0
	for _, v := range assets.Videos {
		if v.OK() {
			videosOK++
		}
	}

	stages := make(map[string]interface{}, len(bundle.Stages))
	for _, st := range bundle.Stages {
		stages[st.Name] = string(st.Outcome)
	}

	summary := models.JSONB{
		"bundle_run_id":  bundle.RunID,
		"plan_validated": bundle.PlanValidated,
		"videos":         len(assets.Videos),
		"videos_ok":      videosOK,
		"stages":         stages,
	}
	if assets.Audio != nil {
		summary["voiceovers"] = len(assets.Audio.VoiceoverTracks)
		summary["sound_effects"] = len(assets.Audio.SoundEffects)
	}
	if fo := assets.FinalOutput; fo != nil {
		summary["final_output"] = string(fo.Status)
	}
	return summary
}

// Submit records a queued run for brief and puts it on the queue.
func Submit(ctx context.Context, store RunCreator, q RunEnqueuer, brief models.Brief, source string) (*models.Run, error) {
	run := &models.Run{
		ID:           uuid.New(),
		Topic:        brief.Topic,
		Style:        brief.Style,
		Tone:         brief.Tone,
		Platform:     brief.Platform,
		BurnCaptions: brief.BurnCaptions,
		Status:       models.RunStatusQueued,
	}
	if brief.Custom != "" {
		run.Brief = strPtr(brief.Custom)
	}

	if err := store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	if err := q.EnqueueRun(ctx, run.ID, source); err != nil {
		enqueueErr := fmt.Errorf("failed to enqueue run: %w", err)
		update := models.RunUpdate{
			Status:       models.RunStatusFailed,
			ErrorMessage: strPtr(enqueueErr.Error()),
		}
		if ferr := store.FinishRun(context.WithoutCancel(ctx), run.ID, update); ferr != nil {
			log.Printf("[Worker] Run %s: could not mark unqueued run failed: %v", run.ID, ferr)
		}
		return nil, enqueueErr
	}

	log.Printf("[Worker] Run %s queued (source: %s)", run.ID, source)
	return run, nil
}

// SubmitFromAPI is Submit for runs requested over HTTP.
func SubmitFromAPI(ctx context.Context, store RunCreator, q RunEnqueuer, brief models.Brief) (*models.Run, error) {
	return Submit(ctx, store, q, brief, sourceAPI)
}

func finished(s models.RunStatus) bool {
	return s == models.RunStatusCompleted || s == models.RunStatusPartial || s == models.RunStatusFailed
}

func strPtr(s string) *string { return &s }

func int64Ptr(i int64) *int64 { return &i }
