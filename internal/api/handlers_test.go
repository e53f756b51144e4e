package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/viralforge/internal/config"
	"github.com/bobarin/viralforge/internal/db"
	"github.com/bobarin/viralforge/internal/models"
)

type fakeStore struct {
	runs      map[uuid.UUID]*models.Run
	assets    map[uuid.UUID][]models.RunAsset
	listCalls []string
	failList  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		runs:   make(map[uuid.UUID]*models.Run),
		assets: make(map[uuid.UUID][]models.RunAsset),
	}
}

func (s *fakeStore) CreateRun(_ context.Context, run *models.Run) error {
	run.CreatedAt = time.Now()
	s.runs[run.ID] = run
	return nil
}

func (s *fakeStore) FinishRun(_ context.Context, id uuid.UUID, update models.RunUpdate) error {
	run, ok := s.runs[id]
	if !ok {
		return db.ErrRunNotFound
	}
	run.Status = update.Status
	run.ErrorMessage = update.ErrorMessage
	return nil
}

func (s *fakeStore) GetRun(_ context.Context, id uuid.UUID) (*models.Run, error) {
	run, ok := s.runs[id]
	if !ok {
		return nil, db.ErrRunNotFound
	}
	return run, nil
}

func (s *fakeStore) ListRuns(_ context.Context, status string, limit, offset int) ([]models.Run, error) {
	if s.failList {
		return nil, errors.New("connection reset")
	}
	s.listCalls = append(s.listCalls, status)
	var out []models.Run
	for _, r := range s.runs {
		if status == "" || string(r.Status) == status {
			out = append(out, *r)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) CountRuns(_ context.Context, status string) (int, error) {
	n := 0
	for _, r := range s.runs {
		if status == "" || string(r.Status) == status {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) GetRunAsset(_ context.Context, runID uuid.UUID, assetType models.AssetType) (*models.RunAsset, error) {
	for _, a := range s.assets[runID] {
		if a.Type == assetType {
			a := a
			return &a, nil
		}
	}
	return nil, db.ErrAssetNotFound
}

func (s *fakeStore) GetRunAssets(_ context.Context, runID uuid.UUID) ([]models.RunAsset, error) {
	return s.assets[runID], nil
}

type fakeQueue struct {
	enqueued []uuid.UUID
	err      error
}

func (q *fakeQueue) EnqueueRun(_ context.Context, runID uuid.UUID, _ string) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, runID)
	return nil
}

type fakeSigner struct{}

func (fakeSigner) GetPublicURL(path string) string {
	return "https://cdn.example.com/runs/" + path
}

func (fakeSigner) GetSignedURL(_ context.Context, path string, _ int) (string, error) {
	return "https://cdn.example.com/sign/runs/" + path + "?token=t", nil
}

type testAPI struct {
	store  *fakeStore
	queue  *fakeQueue
	server *httptest.Server
}

func newTestAPI(t *testing.T, signer URLSigner, apiKey string) *testAPI {
	t.Helper()
	store := newFakeStore()
	q := &fakeQueue{}
	h := NewHandler(store, q, signer, config.Defaults().Pipeline)
	srv := httptest.NewServer(NewRouter(h, RouterConfig{BackendAPIKey: apiKey}))
	t.Cleanup(srv.Close)
	return &testAPI{store: store, queue: q, server: srv}
}

func (a *testAPI) addRun(status models.RunStatus) *models.Run {
	run := &models.Run{ID: uuid.New(), Topic: "minimalist hoodies", Style: "cinematic", Tone: "chaotic", Platform: "tiktok", Status: status}
	a.store.runs[run.ID] = run
	return run
}

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, nil, "secret")

	resp, err := http.Get(api.server.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])
}

func TestCreateRun(t *testing.T) {
	api := newTestAPI(t, nil, "")

	body := `{"topic":"  wool socks ","brief":"socks that judge you","platform":"YouTube_Shorts","burn_captions":true}`
	resp, err := http.Post(api.server.URL+"/v1/runs", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[models.CreateRunResponse](t, resp)
	assert.Equal(t, models.RunStatusQueued, created.Status)
	assert.Equal(t, []uuid.UUID{created.RunID}, api.queue.enqueued)

	run := api.store.runs[created.RunID]
	require.NotNil(t, run)
	assert.Equal(t, "wool socks", run.Topic)
	require.NotNil(t, run.Brief)
	assert.Equal(t, "socks that judge you", *run.Brief)
	assert.Equal(t, "youtube_shorts", run.Platform)
	assert.Equal(t, "cinematic", run.Style)
	assert.True(t, run.BurnCaptions)
}

func TestCreateRun_DefaultTopic(t *testing.T) {
	api := newTestAPI(t, nil, "")

	resp, err := http.Post(api.server.URL+"/v1/runs", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	created := decode[models.CreateRunResponse](t, resp)

	run := api.store.runs[created.RunID]
	require.NotNil(t, run)
	assert.Equal(t, config.DefaultTopic, run.Topic)
	assert.Equal(t, "tiktok", run.Platform)
}

func TestCreateRun_Rejects(t *testing.T) {
	api := newTestAPI(t, nil, "")

	resp, err := http.Post(api.server.URL+"/v1/runs", "application/json", strings.NewReader(`{"topic":`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(api.server.URL+"/v1/runs", "application/json", strings.NewReader(`{"topic":"x","platform":"myspace"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[map[string]string](t, resp)["error"], "youtube_shorts")
	assert.Empty(t, api.queue.enqueued)
}

func TestCreateRun_QueueDown(t *testing.T) {
	api := newTestAPI(t, nil, "")
	api.queue.err = errors.New("redis down")

	resp, err := http.Post(api.server.URL+"/v1/runs", "application/json", strings.NewReader(`{"topic":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	resp.Body.Close()

	require.Len(t, api.store.runs, 1)
	for _, run := range api.store.runs {
		assert.Equal(t, models.RunStatusFailed, run.Status)
	}
}

func TestListRuns(t *testing.T) {
	api := newTestAPI(t, nil, "")
	api.addRun(models.RunStatusCompleted)
	api.addRun(models.RunStatusCompleted)
	api.addRun(models.RunStatusFailed)

	resp, err := http.Get(api.server.URL + "/v1/runs?status=completed&limit=500")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := decode[models.ListRunsResponse](t, resp)
	assert.Equal(t, 2, list.Total)
	assert.Len(t, list.Runs, 2)
	assert.Equal(t, 100, list.Limit)
	assert.Equal(t, 0, list.Offset)

	resp, err = http.Get(api.server.URL + "/v1/runs?offset=10")
	require.NoError(t, err)
	list = decode[models.ListRunsResponse](t, resp)
	assert.Equal(t, 3, list.Total)
	assert.NotNil(t, list.Runs)
	assert.Empty(t, list.Runs)
	assert.Equal(t, 20, list.Limit)
}

func TestListRuns_BadStatus(t *testing.T) {
	api := newTestAPI(t, nil, "")

	resp, err := http.Get(api.server.URL + "/v1/runs?status=exploded")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
	assert.Empty(t, api.store.listCalls)
}

func TestListRuns_StoreError(t *testing.T) {
	api := newTestAPI(t, nil, "")
	api.store.failList = true

	resp, err := http.Get(api.server.URL + "/v1/runs")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	resp.Body.Close()
}

func TestGetRun(t *testing.T) {
	api := newTestAPI(t, fakeSigner{}, "")
	run := api.addRun(models.RunStatusCompleted)
	api.store.assets[run.ID] = []models.RunAsset{
		{ID: uuid.New(), RunID: run.ID, Type: models.AssetTypeGenerationLog, StoragePath: run.ID.String() + "/generation_log.json"},
	}

	resp, err := http.Get(api.server.URL + "/v1/runs/" + run.ID.String())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[models.RunResponse](t, resp)
	assert.Equal(t, run.ID, got.ID)
	require.Len(t, got.Assets, 1)
	require.NotNil(t, got.Assets[0].URL)
	assert.Equal(t, "https://cdn.example.com/runs/"+run.ID.String()+"/generation_log.json", *got.Assets[0].URL)
}

func TestGetRun_Errors(t *testing.T) {
	api := newTestAPI(t, nil, "")

	resp, err := http.Get(api.server.URL + "/v1/runs/not-a-uuid")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(api.server.URL + "/v1/runs/" + uuid.NewString())
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestGetRunAssets_WithoutStorage(t *testing.T) {
	api := newTestAPI(t, nil, "")
	run := api.addRun(models.RunStatusCompleted)
	api.store.assets[run.ID] = []models.RunAsset{{ID: uuid.New(), RunID: run.ID, Type: models.AssetTypeReadme}}

	resp, err := http.Get(api.server.URL + "/v1/runs/" + run.ID.String() + "/assets")
	require.NoError(t, err)
	assets := decode[[]models.RunAssetResponse](t, resp)
	require.Len(t, assets, 1)
	assert.Nil(t, assets[0].URL)
}

func TestGetRunDownload(t *testing.T) {
	api := newTestAPI(t, fakeSigner{}, "")
	run := api.addRun(models.RunStatusCompleted)
	prefix := run.ID.String()
	api.store.assets[run.ID] = []models.RunAsset{
		{ID: uuid.New(), RunID: run.ID, Type: models.AssetTypeGenerationLog, StoragePath: prefix + "/generation_log.json"},
	}

	resp, err := noRedirect().Get(api.server.URL + "/v1/runs/" + prefix + "/download")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), prefix+"/generation_log.json")

	api.store.assets[run.ID] = append(api.store.assets[run.ID], models.RunAsset{
		ID: uuid.New(), RunID: run.ID, Type: models.AssetTypeFinalVideo, StoragePath: prefix + "/final.mp4",
	})
	resp, err = noRedirect().Get(api.server.URL + "/v1/runs/" + prefix + "/download")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Location"), prefix+"/final.mp4")
}

func TestGetRunDownload_NotReady(t *testing.T) {
	api := newTestAPI(t, fakeSigner{}, "")
	run := api.addRun(models.RunStatusRunning)

	resp, err := noRedirect().Get(api.server.URL + "/v1/runs/" + run.ID.String() + "/download")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestGetRunDownload_NoStorage(t *testing.T) {
	api := newTestAPI(t, nil, "")
	run := api.addRun(models.RunStatusCompleted)

	resp, err := noRedirect().Get(api.server.URL + "/v1/runs/" + run.ID.String() + "/download")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestListPlatforms(t *testing.T) {
	api := newTestAPI(t, nil, "")

	resp, err := http.Get(api.server.URL + "/v1/platforms")
	require.NoError(t, err)
	presets := decode[[]map[string]any](t, resp)
	require.Len(t, presets, 4)
	assert.Equal(t, "instagram_reels", presets[0]["name"])
}

func TestAPIKeyAuth(t *testing.T) {
	api := newTestAPI(t, nil, "secret")

	resp, err := http.Get(api.server.URL + "/v1/platforms")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, api.server.URL+"/v1/platforms", nil)
	req.Header.Set("X-API-Key", "wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	req, _ = http.NewRequest(http.MethodGet, api.server.URL+"/v1/platforms", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestSplitOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, SplitOrigins(""))
	assert.Equal(t, []string{"*"}, SplitOrigins(" , "))
	assert.Equal(t, []string{"https://a.com", "https://b.com"}, SplitOrigins("https://a.com, https://b.com,"))
}
