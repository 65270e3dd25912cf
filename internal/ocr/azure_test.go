package ocr_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-agent/internal/common"
	"github.com/joseph-ayodele/receipts-agent/internal/ocr"
)

func writeDoc(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "receipt.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0o644))
	return path
}

func newClient(t *testing.T, endpoint string) *ocr.Client {
	t.Helper()
	c, err := ocr.NewClient(ocr.Config{
		Endpoint:     endpoint,
		Key:          "test-key",
		PollInterval: 10 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := ocr.NewClient(ocr.Config{Endpoint: "https://example"}, nil)
	require.Error(t, err)
	_, err = ocr.NewClient(ocr.Config{Key: "k"}, nil)
	require.Error(t, err)
}

func TestGetLayoutAsMarkdown_SubmitPollSucceeded(t *testing.T) {
	var polls atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			assert.Equal(t, "test-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
			assert.Contains(t, r.URL.RawQuery, "outputContentFormat=markdown")
			w.Header().Set("Operation-Location", srv.URL+"/op/123")
			w.WriteHeader(http.StatusAccepted)
		case r.URL.Path == "/op/123":
			if polls.Add(1) < 3 {
				_ = json.NewEncoder(w).Encode(map[string]any{"status": "running"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status":        "succeeded",
				"analyzeResult": map[string]any{"content": "# Receipt\n\n| Coffee | 20.50 |"},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	got, err := newClient(t, srv.URL).GetLayoutAsMarkdown(context.Background(), writeDoc(t))

	require.NoError(t, err)
	assert.Equal(t, "# Receipt\n\n| Coffee | 20.50 |", got)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestGetLayoutAsMarkdown_AuthFaultIsCollaboratorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":"401"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).GetLayoutAsMarkdown(context.Background(), writeDoc(t))

	require.Error(t, err)
	assert.True(t, common.IsCollaboratorError(err))
}

func TestGetLayoutAsMarkdown_AnalyzeFailedStatus(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Operation-Location", srv.URL+"/op/9")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "failed",
			"error":  map[string]any{"code": "InvalidImage", "message": "corrupt file"},
		})
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).GetLayoutAsMarkdown(context.Background(), writeDoc(t))

	require.Error(t, err)
	assert.True(t, common.IsCollaboratorError(err))
	assert.Contains(t, err.Error(), "InvalidImage")
}

func TestGetLayoutAsMarkdown_UnreadableFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request expected for an unreadable file")
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).GetLayoutAsMarkdown(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))

	require.Error(t, err)
	assert.True(t, common.IsCollaboratorError(err))
}
