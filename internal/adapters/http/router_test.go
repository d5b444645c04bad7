package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mkorchagin/photostock/internal/core/domain"
)

type imageReaderFake struct {
	images  map[int64]*domain.Image
	counts  map[domain.ProcessingStatus]int
	listErr error

	lastLimit  int
	lastOffset int
	lastStatus domain.ProcessingStatus
}

func (f *imageReaderFake) GetByID(_ context.Context, id int64) (*domain.Image, error) {
	img, ok := f.images[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrImageNotFound, "get image", fmt.Errorf("id %d", id))
	}
	return img, nil
}

func (f *imageReaderFake) List(_ context.Context, limit, offset int, status domain.ProcessingStatus) ([]domain.Image, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.lastLimit = limit
	f.lastOffset = offset
	f.lastStatus = status

	var out []domain.Image
	for _, img := range f.images {
		if status == "" || img.Status == status {
			out = append(out, *img)
		}
	}
	return out, nil
}

func (f *imageReaderFake) CountByStatus(_ context.Context) (map[domain.ProcessingStatus]int, error) {
	return f.counts, nil
}

func newTestServer(t *testing.T, reader *imageReaderFake) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(reader, nil, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

func TestListImagesAppliesQueryParameters(t *testing.T) {
	reader := &imageReaderFake{
		images: map[int64]*domain.Image{
			1: {ID: 1, Filename: "a.jpg", Status: domain.StatusCompleted},
			2: {ID: 2, Filename: "b.jpg", Status: domain.StatusFailed},
		},
	}
	srv := newTestServer(t, reader)

	var body struct {
		Images []domain.Image `json:"images"`
		Limit  int            `json:"limit"`
		Offset int            `json:"offset"`
	}
	resp := getJSON(t, srv.URL+"/v1/images?limit=10&offset=5&status=completed", &body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if reader.lastLimit != 10 || reader.lastOffset != 5 || reader.lastStatus != domain.StatusCompleted {
		t.Fatalf("reader saw limit=%d offset=%d status=%q", reader.lastLimit, reader.lastOffset, reader.lastStatus)
	}
	if len(body.Images) != 1 || body.Images[0].Filename != "a.jpg" {
		t.Fatalf("unexpected images payload: %+v", body.Images)
	}
	if body.Limit != 10 || body.Offset != 5 {
		t.Fatalf("echoed paging = %d/%d", body.Limit, body.Offset)
	}
}

func TestListImagesDefaultsAndEmptyResult(t *testing.T) {
	reader := &imageReaderFake{images: map[int64]*domain.Image{}}
	srv := newTestServer(t, reader)

	var body struct {
		Images []domain.Image `json:"images"`
		Limit  int            `json:"limit"`
	}
	resp := getJSON(t, srv.URL+"/v1/images", &body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if reader.lastLimit != defaultListLimit {
		t.Fatalf("default limit = %d, want %d", reader.lastLimit, defaultListLimit)
	}
	if body.Images == nil {
		t.Fatal("images should encode as an empty array, not null")
	}
}

func TestListImagesRejectsBadParameters(t *testing.T) {
	srv := newTestServer(t, &imageReaderFake{images: map[int64]*domain.Image{}})

	for _, query := range []string{"?limit=0", "?limit=9999", "?offset=-1", "?limit=abc", "?status=bogus"} {
		resp := getJSON(t, srv.URL+"/v1/images"+query, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("query %q: status = %d, want 400", query, resp.StatusCode)
		}
	}
}

func TestGetImageByIDMapsDomainErrors(t *testing.T) {
	reader := &imageReaderFake{
		images: map[int64]*domain.Image{
			7: {ID: 7, Filename: "ridge.jpg", Status: domain.StatusCompleted, Keywords: []string{"mountain"}},
		},
	}
	srv := newTestServer(t, reader)

	var img domain.Image
	resp := getJSON(t, srv.URL+"/v1/images/7", &img)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if img.ID != 7 || img.Filename != "ridge.jpg" {
		t.Fatalf("unexpected image: %+v", img)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("response should carry a request id")
	}

	if resp := getJSON(t, srv.URL+"/v1/images/404", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing image: status = %d, want 404", resp.StatusCode)
	}
	if resp := getJSON(t, srv.URL+"/v1/images/zero", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("non-numeric id: status = %d, want 400", resp.StatusCode)
	}
}

func TestListImagesMapsTemporaryFailureTo503(t *testing.T) {
	reader := &imageReaderFake{
		listErr: domain.WrapError(domain.ErrTemporary, "list images", errors.New("connection refused")),
	}
	srv := newTestServer(t, reader)

	resp := getJSON(t, srv.URL+"/v1/images", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestStatsAggregatesCounts(t *testing.T) {
	reader := &imageReaderFake{
		counts: map[domain.ProcessingStatus]int{
			domain.StatusCompleted: 12,
			domain.StatusFailed:    3,
		},
	}
	srv := newTestServer(t, reader)

	var body struct {
		Total    int            `json:"total"`
		ByStatus map[string]int `json:"by_status"`
	}
	resp := getJSON(t, srv.URL+"/v1/stats", &body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body.Total != 15 {
		t.Fatalf("total = %d, want 15", body.Total)
	}
	if body.ByStatus["completed"] != 12 || body.ByStatus["failed"] != 3 {
		t.Fatalf("unexpected by_status: %v", body.ByStatus)
	}
}

func TestServeThumbnailStreamsFile(t *testing.T) {
	thumbPath := filepath.Join(t.TempDir(), "ridge_thumb.jpg")
	if err := os.WriteFile(thumbPath, []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	reader := &imageReaderFake{
		images: map[int64]*domain.Image{
			7: {ID: 7, Filename: "ridge.jpg", ThumbnailPath: thumbPath},
			8: {ID: 8, Filename: "bare.jpg"},
		},
	}
	srv := newTestServer(t, reader)

	resp := getJSON(t, srv.URL+"/v1/thumbnails/7", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("content type = %q, want image/jpeg", ct)
	}

	if resp := getJSON(t, srv.URL+"/v1/thumbnails/8", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("image without thumbnail: status = %d, want 404", resp.StatusCode)
	}
	if resp := getJSON(t, srv.URL+"/v1/thumbnails/404", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing image: status = %d, want 404", resp.StatusCode)
	}
}

type exporterFake struct {
	rows       int
	lastStatus domain.ProcessingStatus
}

func (f *exporterFake) Export(_ context.Context, path string, status domain.ProcessingStatus) (int, error) {
	f.lastStatus = status
	if err := os.WriteFile(path, []byte("xlsx-bytes"), 0o644); err != nil {
		return 0, err
	}
	return f.rows, nil
}

func TestExportCatalogServesSpreadsheet(t *testing.T) {
	exporter := &exporterFake{rows: 4}
	srv := httptest.NewServer(NewRouter(&imageReaderFake{}, exporter, nil).Handler())
	t.Cleanup(srv.Close)

	resp := getJSON(t, srv.URL+"/v1/export?status=completed", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("content type = %q", ct)
	}
	if rows := resp.Header.Get("X-Export-Rows"); rows != "4" {
		t.Fatalf("row header = %q, want 4", rows)
	}
	if exporter.lastStatus != domain.StatusCompleted {
		t.Fatalf("exporter saw status %q", exporter.lastStatus)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &imageReaderFake{images: map[int64]*domain.Image{}})

	resp, err := http.Post(srv.URL+"/v1/images", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}
