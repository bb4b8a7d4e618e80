// Package httputil holds the JSON request and response helpers used by handlers
// and middleware.
package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	svcerrors "github.com/R3E-Network/mintix/internal/errors"
	"github.com/R3E-Network/mintix/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Envelope is the success body used by ticket routes.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Token   string `json:"token,omitempty"`
}

// ErrorBody is the failure body used by every route.
type ErrorBody struct {
	Success bool           `json:"success"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Error   string         `json:"error,omitempty"`
	TraceID string         `json:"traceId,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// WriteJSON encodes data with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a {success, message, data} envelope.
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// WriteErrorResponse writes an ErrorBody with explicit fields.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	body := ErrorBody{Success: false, Code: code, Message: message, Details: details}
	if r != nil {
		body.TraceID = logger.TraceID(r.Context())
	}
	WriteJSON(w, status, body)
}

// WriteError maps err through the service taxonomy and writes it.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	svcErr := svcerrors.GetServiceError(err)
	if svcErr == nil {
		svcErr = svcerrors.Internal("internal server error", err)
	}
	body := ErrorBody{
		Success: false,
		Code:    string(svcErr.Code),
		Message: svcErr.Message,
		Details: svcErr.Details,
	}
	if svcErr.Err != nil {
		body.Error = svcErr.Err.Error()
	}
	if r != nil {
		body.TraceID = logger.TraceID(r.Context())
	}
	status := svcErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, body)
}

// Unauthorized writes a 401 response.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, nil, svcerrors.Unauthorized(message))
}

// DecodeJSON reads a bounded JSON body into dst. An empty body leaves dst untouched.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return svcerrors.Validationf("read body: %v", err)
	}
	if len(data) > maxBodyBytes {
		return svcerrors.Validation("request body too large")
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return svcerrors.Validationf("invalid JSON body: %v", err)
	}
	return nil
}

// Pagination is a parsed limit/page pair.
type Pagination struct {
	Limit int
	Page  int
}

// Offset returns the row offset for the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

const (
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage keeps (page-1)*limit well inside int range.
	MaxPage = 1_000_000
)

// ParsePagination reads limit and page query parameters with defaults.
func ParsePagination(r *http.Request) (Pagination, error) {
	p := Pagination{Limit: DefaultLimit, Page: 1}
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return p, svcerrors.Validation(fmt.Sprintf("invalid limit %q", raw))
		}
		if n > MaxLimit {
			n = MaxLimit
		}
		p.Limit = n
	}
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return p, svcerrors.Validation(fmt.Sprintf("invalid page %q", raw))
		}
		if n > MaxPage {
			return p, svcerrors.Validation(fmt.Sprintf("page must not exceed %d", MaxPage))
		}
		p.Page = n
	}
	return p, nil
}
