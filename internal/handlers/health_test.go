package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/mock/gomock"

	vectorstore_mocks "juris-ai/internal/vectorstore/mocks"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestHealthHandlerHealthy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockVectors := vectorstore_mocks.NewMockVectorStore(ctrl)
	mockVectors.EXPECT().CollectionExists(gomock.Any(), "legal_chunks").Return(true, nil)

	handler := NewHealthHandler(mockVectors, openTestDB(t), "legal_chunks")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Checks["vector_store"] != "ok" || resp.Checks["database"] != "ok" {
		t.Errorf("checks = %+v", resp.Checks)
	}
}

func TestHealthHandlerVectorStoreDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockVectors := vectorstore_mocks.NewMockVectorStore(ctrl)
	mockVectors.EXPECT().CollectionExists(gomock.Any(), "legal_chunks").
		Return(false, errors.New("dial tcp refused"))

	handler := NewHealthHandler(mockVectors, openTestDB(t), "legal_chunks")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("status = %q", resp.Status)
	}
	if len(resp.Issues) == 0 {
		t.Error("issues must be reported when a check fails")
	}
}

func TestHealthHandlerMissingCollection(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockVectors := vectorstore_mocks.NewMockVectorStore(ctrl)
	mockVectors.EXPECT().CollectionExists(gomock.Any(), "legal_chunks").Return(false, nil)

	handler := NewHealthHandler(mockVectors, openTestDB(t), "legal_chunks")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHealthHandlerMethodNotAllowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewHealthHandler(vectorstore_mocks.NewMockVectorStore(ctrl), openTestDB(t), "legal_chunks")

	req := httptest.NewRequest(http.MethodPost, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
