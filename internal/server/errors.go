package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ASHISH26940/registrar/internal/model"
	"github.com/ASHISH26940/registrar/internal/replication"
	"github.com/ASHISH26940/registrar/internal/service"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// errMalformed marks a request body that could not be decoded.
var errMalformed = errors.New("malformed JSON request")

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Timestamp time.Time          `json:"timestamp"`
	Status    int                `json:"status"`
	Error     string             `json:"error"`
	Message   string             `json:"message"`
	Path      string             `json:"path"`
	Errors    []model.FieldError `json:"errors,omitempty"`
}

// decodeBody reads a single JSON document into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			var verr model.ValidationError
			verr.Add(typeErr.Field, "must be of type "+typeErr.Type.String(), typeErr.Value)
			return &verr
		}
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after the JSON body", errMalformed)
	}
	return nil
}

// statusOf maps an error onto its HTTP status.
func statusOf(err error) int {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, errMalformed):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, replication.ErrNotLeader):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err once and writes the error envelope.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	logger := s.requestLogger(r).WithError(err)

	var fields []model.FieldError
	var verr *model.ValidationError
	message := err.Error()
	switch {
	case errors.As(err, &verr):
		fields = verr.Errors
		message = "validation failed"
		logger.Warn("request rejected")
	case status == http.StatusInternalServerError:
		message = "an unexpected error occurred"
		logger.Error("request failed")
	default:
		logger.Info("request rejected")
	}
	s.writeStatus(w, r, status, message, fields)
}

func (s *Server) writeStatus(w http.ResponseWriter, r *http.Request, status int, message string, fields []model.FieldError) {
	writeJSON(w, status, errorResponse{
		Timestamp: s.now(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      r.URL.Path,
		Errors:    fields,
	})
}
