package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"datum/internal/config"
	"datum/internal/domain"
	"datum/internal/domain/models"
	"datum/internal/domain/services"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// ParseJSON decodes JSON from the request body into the given destination.
// Decoding failures are validation errors.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", domain.ErrValidation, err)
	}
	return nil
}

// ParseOptionalJSON is ParseJSON for endpoints whose body may be empty.
func ParseOptionalJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	err := json.NewDecoder(r.Body).Decode(dest)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON: %v", domain.ErrValidation, err)
	}
	return nil
}

// PathInt64 parses a positive integer path wildcard.
func PathInt64(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validationf("invalid %s %q", name, raw)
	}
	return id, nil
}

// QueryInt64 parses an optional positive integer query parameter.
func QueryInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return nil, domain.Validationf("invalid %s %q", name, raw)
	}
	return &v, nil
}

// ParseMultipart reads a multipart form within the upload limits.
func ParseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxMultipartMemory)
	if err := r.ParseMultipartForm(config.MaxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Validationf("file exceeds the %d MiB limit", config.MaxUploadSize>>20)
		}
		return domain.Validationf("invalid multipart form: %v", err)
	}
	return nil
}

// FormFile returns the uploaded file in field, or nil when the field is absent.
// ParseMultipart must have run first.
func FormFile(r *http.Request, field string) (*services.UploadedFile, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Validationf("invalid %s: %v", field, err)
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, config.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return &services.UploadedFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

// Form reads typed multipart fields. The first parse error is kept and
// reported by Err; later reads become no-ops.
type Form struct {
	r   *http.Request
	err error
}

// NewForm wraps a request whose multipart form has been parsed.
func NewForm(r *http.Request) *Form {
	return &Form{r: r}
}

// Err returns the first field error.
func (f *Form) Err() error {
	return f.err
}

func (f *Form) value(name string) (string, bool) {
	if f.err != nil || f.r.MultipartForm == nil {
		return "", false
	}
	values, ok := f.r.MultipartForm.Value[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return strings.TrimSpace(values[0]), true
}

func (f *Form) fail(name, raw string, err error) {
	f.err = domain.Validationf("invalid %s %q: %v", name, raw, err)
}

// String returns the field, or nil when absent.
func (f *Form) String(name string) *string {
	v, ok := f.value(name)
	if !ok {
		return nil
	}
	return &v
}

// Int64 returns the field, or nil when absent or blank.
func (f *Form) Int64(name string) *int64 {
	raw, ok := f.value(name)
	if !ok || raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		f.fail(name, raw, err)
		return nil
	}
	return &v
}

// RequiredInt64 is Int64 for fields that must be present.
func (f *Form) RequiredInt64(name string) int64 {
	v := f.Int64(name)
	if v == nil {
		if f.err == nil {
			f.err = domain.Validationf("%s is required", name)
		}
		return 0
	}
	return *v
}

// Decimal returns the field, or nil when absent or blank.
func (f *Form) Decimal(name string) *decimal.Decimal {
	raw, ok := f.value(name)
	if !ok || raw == "" {
		return nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		f.fail(name, raw, err)
		return nil
	}
	return &v
}

// Date returns a YYYY-MM-DD field, or nil when absent or blank.
func (f *Form) Date(name string) *models.Date {
	raw, ok := f.value(name)
	if !ok || raw == "" {
		return nil
	}
	v, err := models.ParseDate(raw)
	if err != nil {
		f.fail(name, raw, err)
		return nil
	}
	return &v
}
