package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/reelsmith/internal/logging"
)

func TestElevenLabsGenerateSpeech(t *testing.T) {
	var gotPath, gotKey string
	var gotBody elevenLabsRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotKey = r.Header.Get("xi-api-key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	s := NewElevenLabsService("key", "", 5*time.Second, logging.Discard())
	s.baseURL = srv.URL

	resp, err := s.GenerateSpeech(context.Background(), "one two three four five six seven", "custom-voice")
	require.NoError(t, err)

	assert.Equal(t, "/v1/text-to-speech/custom-voice?output_format=mp3_44100_128", gotPath)
	assert.Equal(t, "key", gotKey)
	assert.Equal(t, elevenLabsDefaultModel, gotBody.ModelID)
	assert.Equal(t, "ID3-audio", string(resp.AudioData))
	assert.Equal(t, "mp3", resp.Format)
	assert.Equal(t, 3000, resp.DurationMs)
}

func TestElevenLabsDefaultVoiceAndErrors(t *testing.T) {
	var gotPath string
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte("a"))
		} else {
			_, _ = w.Write([]byte(`{"detail":"quota"}`))
		}
	}))
	defer srv.Close()

	s := NewElevenLabsService("key", "", time.Second, logging.Discard())
	s.baseURL = srv.URL

	_, err := s.GenerateSpeech(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "/v1/text-to-speech/"+elevenLabsDefaultVoice, gotPath)

	status = http.StatusTooManyRequests
	_, err = s.GenerateSpeech(context.Background(), "hi", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestEstimateAudioDuration(t *testing.T) {
	assert.Equal(t, 0, estimateAudioDuration("", 1))
	assert.Equal(t, 60000, estimateAudioDuration(repeatWord("word", 140), 1))
	assert.Equal(t, 30000, estimateAudioDuration(repeatWord("word", 140), 2))
}

func repeatWord(w string, n int) string {
	out := make([]byte, 0, n*(len(w)+1))
	for i := 0; i < n; i++ {
		out = append(out, w...)
		out = append(out, ' ')
	}
	return string(out)
}
