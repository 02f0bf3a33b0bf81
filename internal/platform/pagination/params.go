package pagination

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize applies when the request does not specify page_size.
	DefaultPageSize = 20
	// MaxPageSize caps page_size to keep Firestore offset queries bounded.
	MaxPageSize = 100
)

// Params captures page-number pagination for listing endpoints.
type Params struct {
	Page     int
	PageSize int
}

// Offset returns the number of documents to skip for the requested page.
func (p Params) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// ValidationError reports an invalid pagination parameter.
type ValidationError struct {
	Param  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("pagination: invalid %s: %s", e.Param, e.Reason)
}

// Parse extracts page and page_size query parameters, applying the supplied
// defaults. A defaultSize or maxSize of zero falls back to the package
// constants. Oversized page_size values are clamped rather than rejected.
func Parse(r *http.Request, defaultSize, maxSize int) (Params, error) {
	if defaultSize <= 0 {
		defaultSize = DefaultPageSize
	}
	if maxSize <= 0 {
		maxSize = MaxPageSize
	}
	if defaultSize > maxSize {
		defaultSize = maxSize
	}

	params := Params{Page: 1, PageSize: defaultSize}

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, &ValidationError{Param: "page", Reason: "must be an integer"}
		}
		if page < 1 {
			return Params{}, &ValidationError{Param: "page", Reason: "must be at least 1"}
		}
		params.Page = page
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("page_size")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, &ValidationError{Param: "page_size", Reason: "must be an integer"}
		}
		if size < 1 {
			return Params{}, &ValidationError{Param: "page_size", Reason: "must be at least 1"}
		}
		if size > maxSize {
			size = maxSize
		}
		params.PageSize = size
	}

	return params, nil
}
