package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jonathan/resume-optimizer/internal/apperr"
	"github.com/jonathan/resume-optimizer/internal/optimizer"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// Kinds that only exist at the HTTP surface.
const (
	kindRateLimited     apperr.Kind = "rate_limited"
	kindNotFound        apperr.Kind = "not_found"
	kindPayloadTooLarge apperr.Kind = "payload_too_large"
)

// HTTPStatus returns the appropriate HTTP status code for an error kind
func HTTPStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case kindNotFound:
		return http.StatusNotFound
	case kindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case kindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindEmbeddingTimeout, apperr.KindGenerationTimeout, apperr.KindOptimizationTimeout:
		return http.StatusGatewayTimeout
	case apperr.KindEmbeddingProvider, apperr.KindEmbeddingFormat, apperr.KindGenerationProvider,
		apperr.KindValidationFailed, apperr.KindGenerationExhausted:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is what a caller sees for a kind. Only invalid input echoes the error text,
// which the pipeline builds from field names and never from user content.
func publicMessage(kind apperr.Kind, err error) string {
	switch {
	case kind == apperr.KindInvalidInput:
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return ae.Message
		}
		return "invalid input"
	case apperr.Transient(kind):
		return "The optimization service is temporarily unavailable. Please try again."
	case kind == apperr.KindValidationFailed, kind == apperr.KindGenerationExhausted:
		return "The model did not produce a usable answer. Please try again."
	default:
		return "Internal error."
	}
}

// errorResponse logs err and writes the error envelope for its kind.
func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := HTTPStatus(kind)
	fields := []zap.Field{
		zap.String("request_id", optimizer.RequestID(r.Context())),
		zap.String("kind", string(kind)),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
	} else {
		s.logger.Info("request rejected", fields...)
	}
	s.writeError(w, status, kind, publicMessage(kind, err))
}

func (s *Server) writeError(w http.ResponseWriter, status int, kind apperr.Kind, message string) {
	s.jsonResponse(w, status, types.ErrorBody{Error: types.ErrorDetail{Kind: string(kind), Message: message}})
}

// validationMessage lists the failing fields of a validator error.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Namespace()+" failed "+fe.Tag())
	}
	return "invalid request: " + strings.Join(parts, "; ")
}
