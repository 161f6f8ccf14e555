package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/anuraag-saini/fireqsp-share-sub000/pipeline"
	"github.com/anuraag-saini/fireqsp-share-sub000/storage"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 200

	// maxUploadBytes caps a single document upload.
	maxUploadBytes = 32 << 20
)

type createJobRequest struct {
	OwnerID   string `json:"owner_id"`
	FileCount int    `json:"file_count"`
}

// HandleJobs handles /api/jobs
// POST: create a job (admission-checked)
// GET:  list an owner's jobs
func (s *Server) HandleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.OwnerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	job, err := s.manager.CreateJob(req.OwnerID, req.FileCount)
	if err != nil {
		s.logger.Warnw("Job creation rejected", "owner_id", req.OwnerID, "error", err)
		writeErrorFor(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id query parameter is required")
		return
	}

	limit := defaultJobLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if parsed > maxJobLimit {
			parsed = maxJobLimit
		}
		limit = parsed
	}

	jobs, err := s.manager.ListJobs(ownerID, limit)
	if err != nil {
		writeErrorFor(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// HandleJob handles /api/jobs/{id} and its sub-resources:
// GET  /api/jobs/{id}            job snapshot for progress polling
// POST /api/jobs/{id}/run        start processing (asynchronous)
// POST /api/jobs/{id}/cancel     force the job to failed
// PUT  /api/jobs/{id}/files/{name}  upload one document
func (s *Server) HandleJob(w http.ResponseWriter, r *http.Request) {
	parts := extractPathParts(r.URL.Path, "/api/jobs/")
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "missing job ID")
		return
	}
	jobID := parts[0]

	if len(parts) == 1 {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		s.handleGetJob(w, jobID)
		return
	}

	switch parts[1] {
	case "run":
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		s.handleRunJob(w, jobID)
	case "cancel":
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		s.handleCancelJob(w, jobID)
	case "files":
		if len(parts) < 3 || parts[2] == "" {
			writeError(w, http.StatusBadRequest, "missing file name")
			return
		}
		if !requireMethod(w, r, http.MethodPut) {
			return
		}
		s.handleUploadFile(w, r, jobID, parts[2])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, jobID string) {
	job, err := s.manager.GetJob(jobID)
	if err != nil {
		writeErrorFor(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleRunJob(w http.ResponseWriter, jobID string) {
	job, err := s.manager.GetJob(jobID)
	if err != nil {
		writeErrorFor(w, err)
		return
	}
	if job.Status.IsTerminal() {
		writeError(w, http.StatusConflict, "job is already finished")
		return
	}

	// The run owns the job beyond this request's lifetime.
	go func() {
		res := s.runner.RunJob(context.Background(), job.ID, job.OwnerID, job.TotalFiles)
		if !res.Success {
			s.logger.Warnw("Job run finished unsuccessfully",
				"job_id", job.ID,
				"cancelled", res.Cancelled,
				"error", res.Error)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"id": job.ID, "status": "started"})
}

func (s *Server) handleCancelJob(w http.ResponseWriter, jobID string) {
	if err := s.manager.CancelJob(jobID); err != nil {
		writeErrorFor(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": jobID, "status": "cancelled"})
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request, jobID, name string) {
	job, err := s.manager.GetJob(jobID)
	if err != nil {
		writeErrorFor(w, err)
		return
	}
	if job.Status != pipeline.JobStatusQueued {
		writeError(w, http.StatusConflict, "files can only be uploaded to a queued job")
		return
	}

	uploader, ok := s.objects.(storage.Uploader)
	if !ok {
		writeError(w, http.StatusNotImplemented, "storage backend does not accept uploads")
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty upload")
		return
	}
	if int64(len(data)) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}

	path := pipeline.JobPrefix(job.OwnerID, job.ID) + name
	if err := uploader.Upload(r.Context(), path, data); err != nil {
		s.logger.Errorw("Upload failed", "job_id", jobID, "file", name, "error", err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"file": name})
}

// HandleExtraction handles GET /api/extractions/{id} and
// GET /api/extractions/{id}/interactions.
func (s *Server) HandleExtraction(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	parts := extractPathParts(r.URL.Path, "/api/extractions/")
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "missing extraction ID")
		return
	}
	id := parts[0]

	ext, err := s.extractions.Get(id)
	if err != nil {
		writeErrorFor(w, err)
		return
	}

	if len(parts) > 1 && parts[1] == "interactions" {
		items, err := s.extractions.ListInteractions(id)
		if err != nil {
			writeErrorFor(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"interactions": items})
		return
	}

	writeJSON(w, http.StatusOK, ext)
}

// HandleStatus handles GET /api/status with pipeline load and host memory.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.manager.GetSystemMetrics())
}
