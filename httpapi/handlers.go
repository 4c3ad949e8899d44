package httpapi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/poiesic/docuverse/core"
)

// uploadResponse is returned when an upload is accepted.
type uploadResponse struct {
	Document *documentResponse `json:"document"`
	TaskId   string            `json:"task_id"`
}

// documentResponse is the wire shape of a document record.
type documentResponse struct {
	Id           string          `json:"id"`
	Filename     string          `json:"filename"`
	FileType     core.FileType   `json:"file_type"`
	FileSize     int64           `json:"file_size"`
	Status       core.TaskStatus `json:"status"`
	ChunkCount   int             `json:"chunk_count"`
	ErrorMessage string          `json:"error_message,omitempty"`
	UploadDate   string          `json:"upload_date"`
}

// taskResponse is the wire shape of a task record.
type taskResponse struct {
	Id         string          `json:"id"`
	DocumentId string          `json:"document_id"`
	Kind       core.TaskKind   `json:"kind"`
	Status     core.TaskStatus `json:"status"`
	Progress   int             `json:"progress"`
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func toDocumentResponse(doc *core.Document) *documentResponse {
	return &documentResponse{
		Id:           doc.Id,
		Filename:     doc.Filename,
		FileType:     doc.FileType,
		FileSize:     doc.FileSize,
		Status:       doc.Status,
		ChunkCount:   doc.ChunkCount,
		ErrorMessage: doc.ErrorMessage,
		UploadDate:   doc.UploadDate.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toTaskResponse(task *core.Task) *taskResponse {
	return &taskResponse{
		Id:         task.Id,
		DocumentId: task.DocumentId,
		Kind:       task.Kind,
		Status:     task.Status,
		Progress:   task.Progress,
		Message:    task.Message,
		Error:      task.Error,
	}
}

// handleUpload accepts a multipart form with a single "file" field.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		s.respondError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, fmt.Errorf("%w: missing file field", errBadRequest))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	doc, task, err := s.service.CreateUpload(r.Context(), header.Filename, content)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusAccepted, uploadResponse{
		Document: toDocumentResponse(doc),
		TaskId:   task.Id,
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.ListDocuments(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	out := make([]*documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentResponse(doc))
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	task, err := s.service.RequestDeletion(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, toTaskResponse(task))
}

func (s *Server) handleGetDocumentTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.service.GetTaskByDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toTaskResponse(task))
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.searcher == nil {
		s.respondJSON(w, http.StatusNotImplemented, errorResponse{Error: "search is not configured"})
		return
	}

	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	results, err := s.searcher.Query(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, results)
}

// Worker callback endpoints. These mirror core.StatusCallback: the
// orchestrator discards stale or regressive reports and still returns
// 204, so workers never retry something already ruled on. Only
// malformed requests get 4xx.

type ackRequest struct {
	TaskId string `json:"task_id"`
}

func (s *Server) handleWorkerAck(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.service.Acknowledge(r.Context(), req.TaskId); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type progressRequest struct {
	TaskId   string          `json:"task_id"`
	Status   core.TaskStatus `json:"status"`
	Progress int             `json:"progress"`
	Message  string          `json:"message"`
}

func (s *Server) handleWorkerProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.service.ReportProgress(r.Context(), req.TaskId, req.Status, req.Progress, req.Message); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type completionRequest struct {
	TaskId     string `json:"task_id"`
	ChunkCount int    `json:"chunk_count"`
}

func (s *Server) handleWorkerCompletion(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.service.ReportCompletion(r.Context(), req.TaskId, req.ChunkCount); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type failureRequest struct {
	TaskId string `json:"task_id"`
	Reason string `json:"reason"`
}

func (s *Server) handleWorkerFailure(w http.ResponseWriter, r *http.Request) {
	var req failureRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.service.ReportFailure(r.Context(), req.TaskId, req.Reason); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
