package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/resume-optimizer/internal/apperr"
	"github.com/jonathan/resume-optimizer/internal/db"
	"github.com/jonathan/resume-optimizer/internal/logging"
	"github.com/jonathan/resume-optimizer/internal/optimizer"
	"github.com/jonathan/resume-optimizer/internal/pii"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// decodeBody reads a size-limited JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler may continue.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{ Validate() error }) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, kindPayloadTooLarge, "request body too large")
			return false
		}
		s.writeError(w, http.StatusBadRequest, apperr.KindInvalidInput, "invalid JSON body")
		return false
	}
	if err := dst.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, apperr.KindInvalidInput, validationMessage(err))
		return false
	}
	return true
}

// handleOptimize runs one optimization and stores the masked outcome when persistence is on.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req types.OptimizeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	report, err := s.optimizer.OptimizeReport(r.Context(), req.Resume(), req.Job(), req.Options)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	resp := types.OptimizeResponse{
		RequestID: report.RequestID,
		Result:    report.Result,
		ResumePII: report.ResumePII,
		JobPII:    report.JobPII,
	}
	if s.store != nil {
		record := db.OptimizationFromReport(report)
		if err := s.store.SaveOptimization(r.Context(), record); err != nil {
			s.logger.Error("failed to save optimization",
				zap.String("request_id", report.RequestID),
				zap.Error(err),
			)
		} else {
			resp.ID = record.ID.String()
		}
	}

	s.jsonResponse(w, http.StatusOK, resp)
}

// handleScan masks a text and reports where personal data was found.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req types.ScanRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	masked, findings := s.optimizer.Scanner().Scan(req.Text)
	if findings == nil {
		findings = []types.PIIFinding{}
	}

	fields := append([]zap.Field{zap.String("request_id", optimizer.RequestID(r.Context()))},
		logging.FindingFields(findings)...)
	s.logger.Info("text scanned", fields...)

	s.jsonResponse(w, http.StatusOK, types.ScanResponse{
		MaskedText: masked,
		Findings:   findings,
		Summary:    pii.Summary(findings),
	})
}

// handleGetOptimization returns a stored optimization by id.
func (s *Server) handleGetOptimization(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusNotFound, kindNotFound, "persistence is disabled")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, apperr.KindInvalidInput, "id must be a UUID")
		return
	}

	o, err := s.store.GetOptimization(r.Context(), id)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if o == nil {
		s.writeError(w, http.StatusNotFound, kindNotFound, "optimization not found")
		return
	}

	s.jsonResponse(w, http.StatusOK, types.StoredOptimization{
		ID:              o.ID.String(),
		RequestID:       o.RequestID,
		MaskedResume:    o.MaskedResume,
		Result:          o.Result,
		ResumePII:       o.ResumePII,
		JobPII:          o.JobPII,
		EmbeddingModel:  o.EmbeddingModel,
		GenerationModel: o.GenerationModel,
		DurationMs:      o.DurationMs,
		CreatedAt:       o.CreatedAt,
	})
}
