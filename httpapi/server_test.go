package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docuverse/ai/mock"
	"github.com/poiesic/docuverse/backoff"
	"github.com/poiesic/docuverse/core"
	"github.com/poiesic/docuverse/orchestrator"
	"github.com/poiesic/docuverse/queue"
	"github.com/poiesic/docuverse/search"
	"github.com/poiesic/docuverse/storage/badger"
	"github.com/poiesic/docuverse/vector"
)

type testEnv struct {
	server  *httptest.Server
	service *orchestrator.Service
	jobs    *queue.MemoryQueue
	store   *vector.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tasks, docs, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	jobs := queue.NewMemoryQueue()
	t.Cleanup(func() { jobs.Close() })

	svc, err := orchestrator.New(tasks, docs, jobs, orchestrator.WithUploadsDir(t.TempDir()))
	require.NoError(t, err)

	store := vector.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	searcher, err := search.New(mock.NewMockEmbedder(), store, docs, search.WithMinScore(0))
	require.NoError(t, err)

	srv, err := NewServer(svc, WithSearcher(searcher))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, service: svc, jobs: jobs, store: store}
}

func (e *testEnv) upload(t *testing.T, filename, content string) uploadResponse {
	t.Helper()
	status, body := e.uploadRaw(t, filename, content)
	require.Equal(t, http.StatusAccepted, status, "upload failed: %s", body)

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func (e *testEnv) uploadRaw(t *testing.T, filename, content string) (int, []byte) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(e.server.URL+"/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body.Bytes()
}

func (e *testEnv) postJSON(t *testing.T, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestUploadAcceptsDocument(t *testing.T) {
	env := newTestEnv(t)

	resp := env.upload(t, "report.txt", "some report content")
	assert.NotEmpty(t, resp.TaskId)
	assert.Equal(t, "report.txt", resp.Document.Filename)
	assert.Equal(t, core.StatusQueued, resp.Document.Status)

	job, err := env.jobs.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, resp.TaskId, job.TaskId)
}

func TestUploadRejections(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.uploadRaw(t, "binary.exe", "content")
	assert.Equal(t, http.StatusUnsupportedMediaType, status)

	status, _ = env.uploadRaw(t, "empty.txt", "")
	assert.Equal(t, http.StatusBadRequest, status)

	// no multipart body at all
	resp, err := http.Post(env.server.URL+"/upload", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDocumentEndpoints(t *testing.T) {
	env := newTestEnv(t)
	uploaded := env.upload(t, "report.txt", "some report content")

	resp, err := http.Get(env.server.URL + "/documents")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var docs []*documentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&docs))
	require.Len(t, docs, 1)
	assert.Equal(t, uploaded.Document.Id, docs[0].Id)

	single, err := http.Get(env.server.URL + "/documents/" + uploaded.Document.Id)
	require.NoError(t, err)
	single.Body.Close()
	assert.Equal(t, http.StatusOK, single.StatusCode)

	missing, err := http.Get(env.server.URL + "/documents/no-such-id")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	taskResp, err := http.Get(env.server.URL + "/documents/" + uploaded.Document.Id + "/task")
	require.NoError(t, err)
	defer taskResp.Body.Close()
	require.Equal(t, http.StatusOK, taskResp.StatusCode)

	var task taskResponse
	require.NoError(t, json.NewDecoder(taskResp.Body).Decode(&task))
	assert.Equal(t, uploaded.TaskId, task.Id)
	assert.Equal(t, core.StatusQueued, task.Status)
}

func TestDeleteConflictsWhileProcessing(t *testing.T) {
	env := newTestEnv(t)
	uploaded := env.upload(t, "report.txt", "some report content")

	req, err := http.NewRequest(http.MethodDelete, env.server.URL+"/documents/"+uploaded.Document.Id, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// finish processing, then deletion is accepted
	require.NoError(t, env.service.ReportCompletion(context.Background(), uploaded.TaskId, 2))

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var task taskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
	assert.Equal(t, core.TaskKindDelete, task.Kind)
	assert.Equal(t, core.StatusDeleteQueued, task.Status)
}

func TestWorkerCallbackEndpoints(t *testing.T) {
	env := newTestEnv(t)
	uploaded := env.upload(t, "report.txt", "some report content")
	taskID := uploaded.TaskId

	resp := env.postJSON(t, "/worker/ack", ackRequest{TaskId: taskID})
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.postJSON(t, "/worker/progress", progressRequest{
		TaskId: taskID, Status: core.StatusChunking, Progress: 20, Message: "parsed",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// invalid progress is the worker's bug, not retryable
	resp = env.postJSON(t, "/worker/progress", progressRequest{
		TaskId: taskID, Status: core.StatusChunking, Progress: 150,
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.postJSON(t, "/worker/completion", completionRequest{TaskId: taskID, ChunkCount: 4})
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	doc, err := env.service.GetDocument(context.Background(), uploaded.Document.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, doc.Status)
	assert.Equal(t, 4, doc.ChunkCount)

	// a stale failure after completion is discarded but still 204
	resp = env.postJSON(t, "/worker/failure", failureRequest{TaskId: taskID, Reason: "late"})
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	doc, err = env.service.GetDocument(context.Background(), uploaded.Document.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, doc.Status)
}

func TestQueryEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	embedder := mock.NewMockEmbedder()
	vec, err := embedder.EmbedText(ctx, "stored chunk text")
	require.NoError(t, err)
	chunk := core.Chunk{Id: core.ChunkID("doc-1", 0), DocumentId: "doc-1", Content: "stored chunk text"}
	require.NoError(t, env.store.Upsert(ctx, chunk, vec))

	resp := env.postJSON(t, "/query", queryRequest{Query: "stored chunk text", TopK: 3})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var results []*search.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&results))
	require.NotEmpty(t, results)
	assert.Equal(t, "stored chunk text", results[0].Chunk.Content)

	bad := env.postJSON(t, "/query", queryRequest{Query: ""})
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestCallbackClientDeliversToServer(t *testing.T) {
	env := newTestEnv(t)
	uploaded := env.upload(t, "report.txt", "some report content")

	client := NewCallbackClient(env.server.URL)
	ctx := context.Background()

	require.NoError(t, client.Acknowledge(ctx, uploaded.TaskId))
	require.NoError(t, client.ReportProgress(ctx, uploaded.TaskId, core.StatusChunking, 20, "parsed"))
	require.NoError(t, client.ReportCompletion(ctx, uploaded.TaskId, 3))

	doc, err := env.service.GetDocument(ctx, uploaded.Document.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, doc.Status)
	assert.Equal(t, 3, doc.ChunkCount)
}

func TestCallbackClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":"bad"}`, http.StatusBadRequest)
	}))
	defer ts.Close()

	client := NewCallbackClient(ts.URL, WithClientRetryPolicy(fastClientRetry()))
	err := client.Acknowledge(context.Background(), "task-1")
	require.Error(t, err)
	assert.True(t, core.IsPermanent(err))
	assert.Equal(t, 1, calls, "4xx responses must not be retried")
}

func TestCallbackClientRetriesServerErrors(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "try again", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := NewCallbackClient(ts.URL, WithClientRetryPolicy(fastClientRetry()))
	require.NoError(t, client.Acknowledge(context.Background(), "task-1"))
	assert.Equal(t, 3, calls)
}

func TestWebSocketStreamsEvents(t *testing.T) {
	env := newTestEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	uploaded := env.upload(t, "report.txt", "some report content")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event core.StatusEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, core.EventQueued, event.Type)
	assert.Equal(t, uploaded.TaskId, event.TaskId)
}

func fastClientRetry() backoff.Policy {
	return backoff.Policy{BaseDelay: time.Millisecond, Multiplier: 1, MaxAttempts: 3}
}
