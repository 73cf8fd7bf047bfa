package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/markdave123-py/drivesync/internal/config"
	"github.com/markdave123-py/drivesync/internal/models"
	"github.com/markdave123-py/drivesync/internal/services"
	"github.com/markdave123-py/drivesync/internal/testutil"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func validToken(t *testing.T) string {
	return signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"sub": "ops@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
}

func newTestRouter(t *testing.T) (http.Handler, *testutil.MemoryStore) {
	t.Helper()
	store := testutil.NewMemoryStore()
	store.Put(models.FileRecord{ID: "a", FileName: "a.pdf", SyncStatus: models.StatusEmbedded, ChunkCount: 3})
	store.Put(models.FileRecord{ID: "b", FileName: "b.pdf", SyncStatus: models.StatusErrorPDF})
	store.Put(models.FileRecord{ID: "c", FileName: "c.docx", SyncStatus: models.StatusPending})
	cfg := &config.Config{JWTSecret: testSecret, CorsOrigins: []string{"http://localhost:5173"}}
	return NewRouter(cfg, services.NewFileService(store)), store
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	h, _ := newTestRouter(t)
	if rec := do(t, h, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAPIRequiresValidToken(t *testing.T) {
	h, _ := newTestRouter(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "x"})},
		{"expired", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "x", "exp": time.Now().Add(-time.Hour).Unix()})},
		{"no subject", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})},
		{"wrong algorithm", signToken(t, jwt.SigningMethodHS512, []byte(testSecret), jwt.MapClaims{"sub": "x"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodGet, "/api/files", tt.token, ""); rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestListFiles(t *testing.T) {
	h, _ := newTestRouter(t)
	tok := validToken(t)

	rec := do(t, h, http.MethodGet, "/api/files?status=embedded,error_pdf", tok, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	var files []models.FileRecord
	if err := json.NewDecoder(rec.Body).Decode(&files); err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].ID != "a" || files[1].ID != "b" {
		t.Errorf("files = %+v", files)
	}

	for _, q := range []string{"status=bogus", "limit=x", "offset=-1"} {
		if rec := do(t, h, http.MethodGet, "/api/files?"+q, tok, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func TestGetFile(t *testing.T) {
	h, _ := newTestRouter(t)
	tok := validToken(t)

	rec := do(t, h, http.MethodGet, "/api/files/a", tok, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"chunk_count":3`) {
		t.Errorf("status = %d body=%s", rec.Code, rec.Body)
	}
	if rec := do(t, h, http.MethodGet, "/api/files/zzz", tok, ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing file status = %d", rec.Code)
	}
}

func TestIgnoreFile(t *testing.T) {
	h, store := newTestRouter(t)
	tok := validToken(t)

	if rec := do(t, h, http.MethodPost, "/api/files/a/ignore", tok, `{"ignore": true}`); rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if !store.File("a").IgnoreFile {
		t.Error("ignore flag not stored")
	}
	if rec := do(t, h, http.MethodPost, "/api/files/a/ignore", tok, `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty body status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/files/zzz/ignore", tok, `{"ignore": false}`); rec.Code != http.StatusNotFound {
		t.Errorf("missing file status = %d", rec.Code)
	}
}

func TestRetryFile(t *testing.T) {
	h, store := newTestRouter(t)
	tok := validToken(t)

	if rec := do(t, h, http.MethodPost, "/api/files/b/retry", tok, ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if st := store.File("b").SyncStatus; st != models.StatusPending {
		t.Errorf("status = %s", st)
	}
	if rec := do(t, h, http.MethodPost, "/api/files/a/retry", tok, ""); rec.Code != http.StatusConflict {
		t.Errorf("retry of embedded file status = %d, want 409", rec.Code)
	}
}

func TestLatestRun(t *testing.T) {
	h, store := newTestRouter(t)
	tok := validToken(t)

	if rec := do(t, h, http.MethodGet, "/api/runs/latest", tok, ""); rec.Code != http.StatusNotFound {
		t.Errorf("no runs status = %d", rec.Code)
	}
	sum := &models.RunSummary{ID: "run-1", ItemsSeen: 4}
	sum.Record(models.StatusEmbedded)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	_ = store.RecordRun(ctx, sum)

	rec := do(t, h, http.MethodGet, "/api/runs/latest", tok, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got models.RunSummary
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.ID != "run-1" || got.Counts[models.StatusEmbedded] != 1 {
		t.Errorf("run = %+v", got)
	}
}
