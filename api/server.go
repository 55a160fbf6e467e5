package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/op/go-logging"

	"github.com/verity-secure/evidence-services/constants"
	"github.com/verity-secure/evidence-services/custody"
	"github.com/verity-secure/evidence-services/models/common"
	"github.com/verity-secure/evidence-services/models/service"
	"github.com/verity-secure/evidence-services/session"
)

// Server is the HTTP boundary of the evidence service. Dashcam
// clients post trips and evidence uploads here; everything behind
// this is the custody Coordinator.
type Server struct {
	Logger        *logging.Logger
	Sessions      *session.Manager
	Coordinator   *custody.Coordinator
	Records       custody.RecordStore
	MaxUploadSize int64
}

// NewServer wires a Server from the app context.
func NewServer(ctx *common.Context) *Server {
	sessions := session.NewManager(ctx.RedisClient, ctx.Config.SessionWindow)
	return &Server{
		Logger:        ctx.Logger,
		Sessions:      sessions,
		Coordinator:   custody.NewCoordinator(ctx, sessions),
		Records:       ctx.RedisClient,
		MaxUploadSize: ctx.Config.MaxUploadSize,
	}
}

// Routes returns the chi router for the evidence API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.Healthz)
	r.Post("/api/trips", s.StartTrip)
	r.Post("/api/evidence/upload", s.UploadEvidence)
	r.Get("/api/evidence/{recordId}", s.GetEvidenceRecord)
	return r
}

// tripResponse is the body returned by POST /api/trips.
type tripResponse struct {
	Success   bool   `json:"success"`
	TripID    string `json:"tripId,omitempty"`
	Status    string `json:"status,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	Error     string `json:"error,omitempty"`
}

// anchorInfo is one chain's entry in an upload or record response.
type anchorInfo struct {
	Chain  string `json:"chain"`
	TxRef  string `json:"txRef,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// uploadResponse is the body returned by POST /api/evidence/upload
// and GET /api/evidence/{recordId}.
type uploadResponse struct {
	Success      bool         `json:"success"`
	Deduplicated bool         `json:"deduplicated,omitempty"`
	RecordID     string       `json:"recordId,omitempty"`
	TripID       string       `json:"tripId,omitempty"`
	Plate        string       `json:"plate,omitempty"`
	Digest       string       `json:"digest,omitempty"`
	ContentID    string       `json:"contentId,omitempty"`
	SizeBytes    int64        `json:"sizeBytes,omitempty"`
	Timestamp    int64        `json:"timestamp,omitempty"`
	Anchors      []anchorInfo `json:"anchors,omitempty"`
	Error        string       `json:"error,omitempty"`
}

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StartTrip opens a new evidence session and returns its id. Clients
// hold on to the tripId and send it with every upload.
func (s *Server) StartTrip(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.StartSession()
	if err != nil {
		s.Logger.Errorf("Cannot start trip: %v", err)
		writeJSON(w, http.StatusBadGateway, tripResponse{
			Error: "Trip could not be started. Try again.",
		})
		return
	}
	writeJSON(w, http.StatusCreated, tripResponse{
		Success:   true,
		TripID:    sess.ID,
		Status:    sess.Status,
		CreatedAt: sess.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// UploadEvidence accepts a multipart form with fields "video",
// "plate", and "tripId", runs the submission through the custody
// Coordinator, and reports the per-chain anchor outcome. A record
// that stored successfully but failed on one or more chains comes
// back 200 with success=false, so the client knows the evidence is
// safe even though custody is incomplete.
func (s *Server) UploadEvidence(w http.ResponseWriter, r *http.Request) {
	if s.MaxUploadSize > 0 {
		// Leave headroom for the other form fields and part headers.
		r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadSize+(1<<20))
	}
	file, header, err := r.FormFile("video")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{
			Error: "No video file in upload. Send the file in the 'video' form field.",
		})
		return
	}
	defer file.Close()

	artifact := &service.EvidenceArtifact{
		Reader:    file,
		FileName:  header.Filename,
		MimeHint:  header.Header.Get("Content-Type"),
		SizeBytes: header.Size,
	}
	result := s.Coordinator.Submit(
		r.Context(),
		r.FormValue("tripId"),
		r.FormValue("plate"),
		artifact,
	)
	writeJSON(w, statusFor(result), responseFor(result))
}

// GetEvidenceRecord returns the stored custody record, including the
// current status of each anchor. Anchors still Pending here will be
// advanced by the anchor_confirmer worker.
func (s *Server) GetEvidenceRecord(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "recordId")
	record, err := s.Records.EvidenceRecordGet(recordID)
	if err != nil {
		s.Logger.Errorf("Cannot fetch record %s: %v", recordID, err)
		writeJSON(w, http.StatusBadGateway, uploadResponse{
			Error: "Record store is unavailable. Try again.",
		})
		return
	}
	if record == nil {
		writeJSON(w, http.StatusNotFound, uploadResponse{
			Error: "No evidence record with that id.",
		})
		return
	}
	resp := recordResponse(record)
	resp.Success = record.AllAnchorsSucceeded()
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps a submission result to an HTTP status. Once a record
// exists the evidence is stored, so the answer is 200 regardless of
// anchor outcomes; only submissions rejected before storage get an
// error status.
func statusFor(result *service.SubmissionResult) int {
	if result.Record != nil {
		return http.StatusOK
	}
	procErr := result.FirstError()
	if procErr == nil {
		return http.StatusInternalServerError
	}
	switch procErr.Kind {
	case constants.ErrValidation:
		return http.StatusBadRequest
	case constants.ErrStorage:
		return http.StatusBadGateway
	case constants.ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func responseFor(result *service.SubmissionResult) uploadResponse {
	if result.Record == nil {
		return uploadResponse{Error: result.ErrorMessage()}
	}
	resp := recordResponse(result.Record)
	resp.Success = result.Succeeded()
	resp.Deduplicated = result.Deduplicated
	if !resp.Success {
		resp.Error = result.ErrorMessage()
	}
	return resp
}

func recordResponse(record *service.EvidenceRecord) uploadResponse {
	anchors := make([]anchorInfo, 0, len(record.Anchors))
	for _, anchor := range record.Anchors {
		anchors = append(anchors, anchorInfo{
			Chain:  anchor.Chain,
			TxRef:  anchor.TxRef,
			Status: anchor.Status,
			Error:  anchor.ErrorMessage,
		})
	}
	return uploadResponse{
		RecordID:  record.RecordID,
		TripID:    record.SessionID,
		Plate:     record.Plate,
		Digest:    record.Digest,
		ContentID: record.ContentID,
		SizeBytes: record.SizeBytes,
		Timestamp: record.CreatedAt,
		Anchors:   anchors,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
