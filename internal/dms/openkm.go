// Package dms stores purchase receipts in OpenKM through its REST API.
package dms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"datum/internal/domain"
	"datum/internal/domain/models"
	"datum/internal/domain/services"
)

const serviceName = "openkm"

// maxErrorBody bounds how much of an error response is kept for diagnostics.
const maxErrorBody = 2048

// ErrPayloadRejected marks uploads that OpenKM refused on content grounds,
// as opposed to transport or authentication failures.
var ErrPayloadRejected = errors.New("document rejected by document store")

// Config holds OpenKM connection settings.
type Config struct {
	BaseURL  string
	Username string
	Password string
	BasePath string
	Timeout  time.Duration
}

// OpenKMClient implements services.DocumentStore. Every request carries Basic
// credentials; no session cookie is kept.
type OpenKMClient struct {
	baseURL    string
	username   string
	password   string
	basePath   string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ services.DocumentStore = (*OpenKMClient)(nil)

// NewOpenKMClient creates a new OpenKM REST client.
func NewOpenKMClient(cfg Config, logger *slog.Logger) *OpenKMClient {
	return &OpenKMClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		basePath:   cfg.BasePath,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (c *OpenKMClient) endpoint(name string, query url.Values) string {
	u := c.baseURL + "/services/rest/" + name
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *OpenKMClient) send(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(c.username, c.password)
	return c.httpClient.Do(req)
}

func transportError(op string, err error) error {
	return &domain.UpstreamError{Service: serviceName, Op: op, Err: err}
}

func statusError(op string, resp *http.Response, cause error) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &domain.UpstreamError{
		Service:    serviceName,
		Op:         op,
		StatusCode: resp.StatusCode,
		Detail:     strings.TrimSpace(string(body)),
		Err:        cause,
	}
}

// createFolder creates one folder. OpenKM answers an existing path with an
// error status, so any HTTP response is accepted and only logged.
func (c *OpenKMClient) createFolder(ctx context.Context, folderPath string) error {
	body, err := json.Marshal(map[string]string{"path": folderPath})
	if err != nil {
		return fmt.Errorf("marshal folder: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("folder/create", nil), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build folder request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(req)
	if err != nil {
		return transportError("create folder", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &domain.UpstreamError{Service: serviceName, Op: "create folder", StatusCode: resp.StatusCode, Detail: "credentials rejected"}
	case resp.StatusCode >= 300:
		c.logger.Debug("folder not created, assuming it exists", "path", folderPath, "status", resp.StatusCode)
	}
	return nil
}

// Upload creates the purchase's folder chain and stores content at the canonical path.
func (c *OpenKMClient) Upload(ctx context.Context, purchaseID int64, date models.Date, filename string, content []byte) (string, error) {
	for _, folder := range ancestors(c.basePath, purchaseID, date) {
		if err := c.createFolder(ctx, folder); err != nil {
			return "", err
		}
	}

	docPath := CanonicalPath(c.basePath, purchaseID, date, filename)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("docPath", docPath); err != nil {
		return "", fmt.Errorf("write docPath field: %w", err)
	}
	part, err := form.CreateFormFile("content", FileName(docPath))
	if err != nil {
		return "", fmt.Errorf("create content part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("write content part: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("document/createSimple", nil), &buf)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(req)
	if err != nil {
		return "", transportError("upload document", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		_, _ = io.Copy(io.Discard, resp.Body)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", statusError("upload document", resp, nil)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", statusError("upload document", resp, ErrPayloadRejected)
	default:
		return "", statusError("upload document", resp, nil)
	}

	c.logger.Info("document uploaded", "purchase_id", purchaseID, "path", docPath, "size", len(content))
	return docPath, nil
}

// Download returns the blob stored at docPath.
func (c *OpenKMClient) Download(ctx context.Context, docPath string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint("document/getContent", url.Values{"docId": {docPath}}), nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.send(req)
	if err != nil {
		return nil, transportError("download document", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("document %s: %w", docPath, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("download document", resp, nil)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError("download document", err)
	}
	return content, nil
}

// Delete removes the blob at docPath. A missing blob counts as deleted.
func (c *OpenKMClient) Delete(ctx context.Context, docPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.endpoint("document/delete", url.Values{"docId": {docPath}}), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}

	resp, err := c.send(req)
	if err != nil {
		return transportError("delete document", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		c.logger.Info("document deleted", "path", docPath)
		return nil
	case resp.StatusCode == http.StatusNotFound:
		c.logger.Debug("document already absent", "path", docPath)
		return nil
	default:
		return statusError("delete document", resp, nil)
	}
}

// Replace deletes oldPath and uploads content. Only the upload can fail the call.
func (c *OpenKMClient) Replace(ctx context.Context, oldPath string, purchaseID int64, date models.Date, filename string, content []byte) (string, error) {
	if oldPath != "" {
		if err := c.Delete(ctx, oldPath); err != nil {
			c.logger.Warn("could not delete superseded document", "path", oldPath, "purchase_id", purchaseID, "error", err)
		}
	}
	return c.Upload(ctx, purchaseID, date, filename, content)
}

// Exists asks OpenKM whether a node is present at docPath.
func (c *OpenKMClient) Exists(ctx context.Context, docPath string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint("repository/hasNode", url.Values{"nodeId": {docPath}}), nil)
	if err != nil {
		return false, fmt.Errorf("build exists request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.send(req)
	if err != nil {
		return false, transportError("check document", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, statusError("check document", resp, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return false, transportError("check document", err)
	}
	return strings.EqualFold(strings.TrimSpace(string(body)), "true"), nil
}
