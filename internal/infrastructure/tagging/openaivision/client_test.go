package openaivision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mkorchagin/photostock/internal/core/domain"
	"github.com/mkorchagin/photostock/internal/infrastructure/resilience"
)

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.jpg")
	if err := os.WriteFile(path, []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func completionBody(content string) string {
	out, _ := json.Marshal(map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": content}},
		},
	})
	return string(out)
}

func TestGenerateNormalizesAndDeduplicatesTags(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(completionBody("Sunset, BEACH , sunset, golden hour, , waves.")))
	}))
	defer srv.Close()

	client := New(srv.URL, "sk-test", nil)
	tags, err := client.Generate(context.Background(), writeImage(t))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	want := []string{"sunset", "beach", "golden hour", "waves"}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("tags[%d] = %q, want %q", i, tags[i], want[i])
		}
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["model"] != defaultModel {
		t.Errorf("model = %v", gotBody["model"])
	}
}

func TestGenerateCapsTagCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completionBody("one, two, three, four, five")))
	}))
	defer srv.Close()

	client := New(srv.URL, "k", nil, WithMaxTags(3))
	tags, err := client.Generate(context.Background(), writeImage(t))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(tags) != 3 {
		t.Fatalf("tags = %v, want first 3", tags)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(completionBody("harbor, boats")))
	}))
	defer srv.Close()

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1,
		RetryMaxBackoff:     1,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})
	client := New(srv.URL, "k", exec)

	tags, err := client.Generate(context.Background(), writeImage(t))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if calls != 3 {
		t.Fatalf("server calls = %d, want 3", calls)
	}
	if len(tags) != 2 {
		t.Fatalf("tags = %v", tags)
	}
}

func TestGenerateFailsFastOnClientError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: 3,
		BreakerEnabled:   false,
	})
	client := New(srv.URL, "bad", exec)

	_, err := client.Generate(context.Background(), writeImage(t))
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("Generate() error = %v, want 401 status error", err)
	}
	if calls != 1 {
		t.Fatalf("server calls = %d, want no retries on 4xx", calls)
	}
}

func TestGenerateRejectsMissingFile(t *testing.T) {
	client := New("http://unused", "k", nil)
	_, err := client.Generate(context.Background(), filepath.Join(t.TempDir(), "gone.jpg"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("Generate() error = %v, want ErrInvalidInput", err)
	}
}
