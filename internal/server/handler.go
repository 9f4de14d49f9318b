package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	verrors "github.com/matzehuels/viewgraph/pkg/errors"
)

// Fixed response bodies.
const (
	notFoundBody   = "404 not found."
	badRequestBody = "400 Bad Request. "
	internalBody   = "500 Internal Server Error. "
)

// ErrorCodeHeader carries the machine-readable code of a failed request.
const ErrorCodeHeader = "X-Error-Code"

// handleLayout reads the whole body, runs the pipeline and writes either the
// complete response or an error. Nothing is written before the pipeline
// finishes, so a failure never leaves a partial response.
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	logger := loggerFromRequest(r, s.logger)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.writeError(w, r, verrors.New(verrors.ErrCodeMalformedInput,
				"request body exceeds %d bytes", tooLarge.Limit))
		case r.Context().Err() != nil:
			logger.Debug("client went away during body read", "error", err)
		default:
			s.writeError(w, r, verrors.Wrap(verrors.ErrCodeParseFailure, err, "read request body"))
		}
		return
	}

	result, err := s.runner.Execute(r.Context(), body)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Debug("request abandoned", "error", err)
			return
		}
		s.writeError(w, r, err)
		return
	}

	logger.Debug("layout computed",
		"entries", result.Response.Len(),
		"cached", result.CacheHit,
		"duration", result.Stats.Total())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Body); err != nil {
		logger.Debug("write response", "error", err)
	}
}

// writeError maps err onto a status and writes the fixed-prefix body.
// Client errors are logged at debug level; server errors at error level.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := verrors.HTTPStatus(err)
	logger := loggerFromRequest(r, s.logger)

	var body string
	switch status {
	case http.StatusBadRequest:
		body = badRequestBody + verrors.UserMessage(err)
		logger.Debug("bad request", "code", verrors.GetCode(err), "error", err)
	case http.StatusNotFound:
		body = notFoundBody
	default:
		status = http.StatusInternalServerError
		body = internalBody + verrors.UserMessage(err)
		logger.Error("request failed", "code", verrors.GetCode(err), "error", err)
	}

	if code := verrors.GetCode(err); code != "" {
		w.Header().Set(ErrorCodeHeader, string(code))
	}
	writeText(w, status, body)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusNotFound, notFoundBody)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	io.WriteString(w, body)
}
