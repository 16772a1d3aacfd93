package httputil

import (
	"encoding/json"
	"net/http"
)

// RespondJSON writes a JSON response with the given status code.
// It marshals first so an encoding failure never leaves a partial response.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

// RespondMessage writes {"message": msg}.
func RespondMessage(w http.ResponseWriter, status int, msg string) {
	RespondJSON(w, status, map[string]string{"message": msg})
}

// ProblemDetail represents an RFC 7807 Problem Details response
type ProblemDetail struct {
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Status   int            `json:"status"`
	Detail   string         `json:"detail,omitempty"`
	Instance string         `json:"instance,omitempty"`
	Extra    map[string]any `json:"-"`
}

// MarshalJSON flattens Extra into the top-level object
func (p ProblemDetail) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"type":   p.Type,
		"title":  p.Title,
		"status": p.Status,
	}
	if p.Detail != "" {
		m["detail"] = p.Detail
	}
	if p.Instance != "" {
		m["instance"] = p.Instance
	}
	for k, v := range p.Extra {
		m[k] = v
	}
	return json.Marshal(m)
}

// RespondError writes an RFC 7807 Problem Details error response
func RespondError(w http.ResponseWriter, status int, detail string) {
	RespondProblem(w, ProblemDetail{Status: status, Detail: detail})
}

// RespondErrorWithExtras writes an RFC 7807 error with additional fields
func RespondErrorWithExtras(w http.ResponseWriter, status int, detail string, extras map[string]any) {
	RespondProblem(w, ProblemDetail{Status: status, Detail: detail, Extra: extras})
}

// RespondProblem fills in Type and Title from the status and writes p.
func RespondProblem(w http.ResponseWriter, p ProblemDetail) {
	if p.Type == "" {
		p.Type = errorTypeFromStatus(p.Status)
	}
	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}

	payload, err := json.Marshal(p)
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	w.Write(payload)
}

const (
	rfc7231 = "https://datatracker.ietf.org/doc/html/rfc7231#section-"
	rfc7235 = "https://datatracker.ietf.org/doc/html/rfc7235#section-"
)

var problemTypes = map[int]string{
	http.StatusBadRequest:            rfc7231 + "6.5.1",
	http.StatusUnauthorized:          rfc7235 + "3.1",
	http.StatusForbidden:             rfc7231 + "6.5.3",
	http.StatusNotFound:              rfc7231 + "6.5.4",
	http.StatusConflict:              rfc7231 + "6.5.8",
	http.StatusRequestEntityTooLarge: rfc7231 + "6.5.11",
	http.StatusInternalServerError:   rfc7231 + "6.6.1",
	http.StatusServiceUnavailable:    rfc7231 + "6.6.4",
}

func errorTypeFromStatus(status int) string {
	if t, ok := problemTypes[status]; ok {
		return t
	}
	return "about:blank"
}
