package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext_Defaults(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Page != 1 {
		t.Errorf("expected default page 1, got %d", p.Page)
	}
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=50", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Page != 3 {
		t.Errorf("expected page 3, got %d", p.Page)
	}
	if p.Limit != 50 {
		t.Errorf("expected limit 50, got %d", p.Limit)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativePage(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page=-2", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Page != 1 {
		t.Errorf("expected page 1 for negative input, got %d", p.Page)
	}
}

func TestParams_Offset(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   int
	}{
		{"first page", Params{Page: 1, Limit: 20}, 0},
		{"second page", Params{Page: 2, Limit: 20}, 20},
		{"deep page", Params{Page: 5, Limit: 10}, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.Offset(); got != tt.want {
				t.Errorf("Offset() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSQL(t *testing.T) {
	p := Params{Page: 3, Limit: 20}
	expected := "LIMIT 20 OFFSET 40"
	if p.SQL() != expected {
		t.Errorf("expected %q, got %q", expected, p.SQL())
	}
}

func TestParams_TotalPages(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		total  int
		want   int
	}{
		{"exact fit", Params{Page: 1, Limit: 10}, 30, 3},
		{"partial last page", Params{Page: 1, Limit: 10}, 25, 3},
		{"single page", Params{Page: 1, Limit: 10}, 4, 1},
		{"no results", Params{Page: 1, Limit: 10}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.TotalPages(tt.total); got != tt.want {
				t.Errorf("TotalPages() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParams_HasNext(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		total  int
		want   bool
	}{
		{"more results", Params{Page: 1, Limit: 10}, 25, true},
		{"last partial page", Params{Page: 3, Limit: 10}, 25, false},
		{"no results", Params{Page: 1, Limit: 10}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.HasNext(tt.total); got != tt.want {
				t.Errorf("HasNext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNamedResponse(t *testing.T) {
	items := []string{"a", "b", "c"}
	r := NamedResponse("widgets", items, 25, Params{Page: 2, Limit: 10})

	if got, ok := r["widgets"].([]string); !ok || len(got) != 3 {
		t.Errorf("expected 3 items under \"widgets\", got %v", r["widgets"])
	}
	if r["total"] != 25 {
		t.Errorf("expected total 25, got %v", r["total"])
	}
	if r["page"] != 2 {
		t.Errorf("expected page 2, got %v", r["page"])
	}
	if r["total_pages"] != 3 {
		t.Errorf("expected 3 total pages, got %v", r["total_pages"])
	}
}
