package auth

import (
	"io"
	"net/http"
	"strings"

	"datum/internal/domain"
)

const serviceName = "keycloak"

// maxErrorBody bounds how much of an error response is kept for diagnostics.
const maxErrorBody = 2048

func transportError(op string, err error) error {
	return &domain.UpstreamError{Service: serviceName, Op: op, Err: err}
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &domain.UpstreamError{
		Service:    serviceName,
		Op:         op,
		StatusCode: resp.StatusCode,
		Detail:     strings.TrimSpace(string(body)),
	}
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
