package testutil

import (
	"errors"
	"net/http"
	"testing"
)

func TestAssertStatusCode(t *testing.T) {
	t.Parallel()

	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertStatusCode(t, http.StatusNotFound, http.StatusNotFound)
}

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	AssertNoError(t, nil)
}

func TestAssertError(t *testing.T) {
	t.Parallel()

	AssertError(t, errors.New("drive log unavailable"))
}

func TestNewTestRequest(t *testing.T) {
	t.Parallel()

	req := NewTestRequest(http.MethodGet, "/charts/latency")
	if req.Method != http.MethodGet {
		t.Errorf("method = %s, want GET", req.Method)
	}
	if req.URL.Path != "/charts/latency" {
		t.Errorf("path = %s, want /charts/latency", req.URL.Path)
	}
}

func TestNewTestRecorder(t *testing.T) {
	t.Parallel()

	rec := NewTestRecorder()
	if rec.Code != http.StatusOK {
		t.Errorf("initial Code = %d, want %d", rec.Code, http.StatusOK)
	}
	rec.WriteHeader(http.StatusNotFound)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Code = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
