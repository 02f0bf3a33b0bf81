package pagination

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/products", nil)

	params, err := Parse(r, 0, 0)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.Page != 1 {
		t.Errorf("expected page 1, got %d", params.Page)
	}
	if params.PageSize != DefaultPageSize {
		t.Errorf("expected default page size %d, got %d", DefaultPageSize, params.PageSize)
	}
	if params.Offset() != 0 {
		t.Errorf("expected zero offset, got %d", params.Offset())
	}
}

func TestParseExplicitValues(t *testing.T) {
	r := httptest.NewRequest("GET", "/products?page=3&page_size=25", nil)

	params, err := Parse(r, 20, 100)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.Page != 3 || params.PageSize != 25 {
		t.Fatalf("unexpected params %+v", params)
	}
	if params.Offset() != 50 {
		t.Errorf("expected offset 50, got %d", params.Offset())
	}
}

func TestParseClampsOversizedPageSize(t *testing.T) {
	r := httptest.NewRequest("GET", "/products?page_size=500", nil)

	params, err := Parse(r, 20, 100)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != 100 {
		t.Errorf("expected page size clamped to 100, got %d", params.PageSize)
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		query string
		param string
	}{
		{name: "non-numeric page", query: "page=abc", param: "page"},
		{name: "zero page", query: "page=0", param: "page"},
		{name: "negative page", query: "page=-2", param: "page"},
		{name: "non-numeric size", query: "page_size=big", param: "page_size"},
		{name: "zero size", query: "page_size=0", param: "page_size"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/products?"+tc.query, nil)
			_, err := Parse(r, 20, 100)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if verr.Param != tc.param {
				t.Errorf("expected param %s, got %s", tc.param, verr.Param)
			}
		})
	}
}

func TestParseShrinksDefaultToMax(t *testing.T) {
	r := httptest.NewRequest("GET", "/products", nil)

	params, err := Parse(r, 50, 30)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != 30 {
		t.Errorf("expected default shrunk to max 30, got %d", params.PageSize)
	}
}
