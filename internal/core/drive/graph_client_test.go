package drive

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

const deltaPage1 = `{
  "value": [
    {
      "id": "01A", "name": "Report.pdf", "size": 2048, "webUrl": "https://contoso/Report.pdf",
      "createdDateTime": "2024-01-02T03:04:05Z", "lastModifiedDateTime": "2024-02-03T04:05:06Z",
      "createdBy": {"user": {"displayName": "Ada"}},
      "lastModifiedBy": {"user": {"displayName": "Grace"}},
      "file": {"mimeType": "application/pdf"},
      "parentReference": {"path": "/drives/b!x/root:/Finance/2024"}
    },
    {"id": "01F", "name": "Finance", "folder": {"childCount": 2}},
    {"id": "01D", "deleted": {"state": "deleted"}}
  ],
  "@odata.nextLink": "NEXT"
}`

func newTestGraph(t *testing.T, handler http.HandlerFunc) *GraphClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGraphClientWithHTTP(srv.Client(), srv.URL+"/v1.0", "b!x")
}

func TestGraphClientFirstDeltaPage(t *testing.T) {
	var gotPath, gotQuery string
	g := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.Query().Get("$select")
		_, _ = w.Write([]byte(deltaPage1))
	})

	page, err := g.GetChanges(context.Background(), "")
	if err != nil {
		t.Fatalf("GetChanges: %v", err)
	}
	if gotPath != "/v1.0/drives/b!x/root/delta" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.Contains(gotQuery, "parentReference") || !strings.Contains(gotQuery, "deleted") {
		t.Errorf("$select = %q", gotQuery)
	}
	if page.NextCursor != "NEXT" || page.DeltaCursor != "" {
		t.Errorf("cursors = %q / %q", page.NextCursor, page.DeltaCursor)
	}
	if len(page.Items) != 3 {
		t.Fatalf("items = %d", len(page.Items))
	}

	f := page.Items[0]
	if !f.IsFile || f.Deleted || f.Name != "Report.pdf" || f.Size != 2048 {
		t.Errorf("file item = %+v", f)
	}
	if f.ParentPath != "/drives/b!x/root:/Finance/2024" || f.CreatedBy != "Ada" || f.LastModifiedBy != "Grace" {
		t.Errorf("file item = %+v", f)
	}
	if f.LastModifiedDateTime == nil || f.LastModifiedDateTime.Month() != 2 {
		t.Errorf("lastModified = %v", f.LastModifiedDateTime)
	}
	if page.Items[1].IsFile {
		t.Error("folder reported as file")
	}
	if !page.Items[2].Deleted {
		t.Error("deleted facet ignored")
	}
}

func TestGraphClientFollowsAbsoluteCursor(t *testing.T) {
	var hits []string
	var srvURL string
	g := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.RequestURI())
		_, _ = w.Write([]byte(`{"value": [], "@odata.deltaLink": "` + srvURL + `/v1.0/drives/b!x/root/delta?token=2"}`))
	})
	srvURL = strings.TrimSuffix(g.baseURL, "/v1.0")

	page, err := g.GetChanges(context.Background(), srvURL+"/v1.0/drives/b!x/root/delta?token=1")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0] != "/v1.0/drives/b!x/root/delta?token=1" {
		t.Errorf("hits = %v", hits)
	}
	if !strings.HasSuffix(page.DeltaCursor, "token=2") {
		t.Errorf("delta cursor = %q", page.DeltaCursor)
	}
}

func TestGraphClientErrors(t *testing.T) {
	g := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"resyncRequired"}}`, http.StatusGone)
	})
	if _, err := g.GetChanges(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "410") {
		t.Errorf("GetChanges err = %v", err)
	}
	if _, err := g.Download(context.Background(), "01A"); err == nil {
		t.Error("Download should fail on 410")
	}
}

func TestGraphClientDownload(t *testing.T) {
	content := []byte("%PDF-1.7 fake")
	g := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1.0/drives/b!x/items/01A/content" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(content)
	})

	got, err := g.Download(context.Background(), "01A")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("content = %q", got)
	}
	if _, err := g.Download(context.Background(), "missing"); err == nil {
		t.Error("expected 404 error")
	}
}

func TestFileCursorStore(t *testing.T) {
	ctx := context.Background()
	s := NewFileCursorStore(filepath.Join(t.TempDir(), "deltaLink.txt"))

	got, err := s.Load(ctx)
	if err != nil || got != "" {
		t.Fatalf("Load on missing file = %q, %v", got, err)
	}
	for _, c := range []string{"https://graph/delta?token=1", "https://graph/delta?token=2"} {
		if err := s.Save(ctx, c); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if got, _ := s.Load(ctx); got != c {
			t.Errorf("Load = %q, want %q", got, c)
		}
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got, err := s.Load(ctx); err != nil || got != "" {
		t.Errorf("Load after Reset = %q, %v", got, err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Errorf("Reset of missing file: %v", err)
	}
}
