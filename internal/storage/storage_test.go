package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/reelsmith/internal/logging"
)

func TestPublishRenderRetries(t *testing.T) {
	var calls int32
	var gotPath, gotType, gotAuth string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(srv.URL+"/", "service-key", "renders", logging.Discard())
	s.baseDelay = time.Millisecond

	local := filepath.Join(t.TempDir(), "video_x.mp4")
	require.NoError(t, os.WriteFile(local, []byte("movie"), 0644))

	id := uuid.New()
	url, err := s.PublishRender(context.Background(), id, local)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "/storage/v1/object/renders/renders/"+id.String()+"/video_x.mp4", gotPath)
	assert.Equal(t, "video/mp4", gotType)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "movie", string(gotBody))
	assert.Equal(t, srv.URL+"/storage/v1/object/public/renders/renders/"+id.String()+"/video_x.mp4", url)
}

func TestUploadNonRetryableStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := New(srv.URL, "k", "b", logging.Discard())
	s.baseDelay = time.Millisecond

	err := s.Upload(context.Background(), "a.mp4", []byte("x"), "video/mp4")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetryDelayBounded(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := retryDelay(baseRetryDelay, attempt)
		assert.LessOrEqual(t, d, time.Duration(float64(maxRetryDelay)*1.25))
		assert.GreaterOrEqual(t, d, baseRetryDelay)
	}
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "video/quicktime", contentTypeFor("a.MOV"))
	assert.Equal(t, "video/webm", contentTypeFor("a.webm"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("a.unknownext"))
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.True(t, isRetryableError(fmt.Errorf("read: %w", io.ErrUnexpectedEOF)))
	assert.True(t, isRetryableError(&net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}))
	assert.False(t, isRetryableError(errors.New("bad certificate")))
}
