package httpapi

import (
	"net/http/httptest"
	"testing"
)

func TestNormalizeListParams_Defaults(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/phase3/profiles", nil)
	page, pageSize, err := normalizeListParams(req)
	if err != nil {
		t.Fatalf("normalizeListParams: %v", err)
	}
	if page != 1 || pageSize != analyticsDefaultPageSize {
		t.Fatalf("got page=%d pageSize=%d, want 1/%d", page, pageSize, analyticsDefaultPageSize)
	}
}

func TestNormalizeListParams_ClampsOversizedPageSize(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/phase3/profiles?page_size=9999", nil)
	_, pageSize, err := normalizeListParams(req)
	if err != nil {
		t.Fatalf("normalizeListParams: %v", err)
	}
	if pageSize != analyticsMaxPageSize {
		t.Fatalf("pageSize = %d, want clamped %d", pageSize, analyticsMaxPageSize)
	}
}

func TestNormalizeListParams_RejectsNegativePage(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/phase3/profiles?page=-1", nil)
	if _, _, err := normalizeListParams(req); err == nil {
		t.Fatal("expected validation error for negative page")
	}
}

func TestNormalizeListParams_RejectsExplicitZeroPageSize(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/phase3/profiles?page_size=0", nil)
	if _, _, err := normalizeListParams(req); err == nil {
		t.Fatal("expected validation error for explicit page_size=0")
	}
}

func TestNormalizeListParams_DefaultsAbsentPageSize(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/phase3/profiles", nil)
	_, pageSize, err := normalizeListParams(req)
	if err != nil {
		t.Fatalf("normalizeListParams: %v", err)
	}
	if pageSize != analyticsDefaultPageSize {
		t.Fatalf("pageSize = %d, want default %d", pageSize, analyticsDefaultPageSize)
	}
}
