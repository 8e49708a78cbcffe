package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestClassify_Anomaly(t *testing.T) {
	var got detectRequest
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/detect-anomaly", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"predictions":[-1],"scores":[-0.31]}`))
	})

	res, err := New(srv.URL+"/", time.Second).Classify(context.Background(), 4.5)
	require.NoError(t, err)
	assert.Equal(t, []float64{4.5}, got.Times)
	assert.True(t, res.IsAnomaly)
	assert.InDelta(t, -0.31, res.Score, 1e-9)
}

func TestClassify_Inlier(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[1],"scores":[0.12]}`))
	})

	res, err := New(srv.URL, time.Second).Classify(context.Background(), 3600)
	require.NoError(t, err)
	assert.False(t, res.IsAnomaly)
}

func TestClassify_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"predictions":`))
		}},
		{"empty predictions", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"predictions":[],"scores":[]}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.handler)
			_, err := New(srv.URL, time.Second).Classify(context.Background(), 10)
			assert.Error(t, err)
		})
	}
}

func TestClassify_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	start := time.Now()
	_, err := New(srv.URL, 50*time.Millisecond).Classify(context.Background(), 10)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClassify_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second).Classify(context.Background(), 10)
	assert.Error(t, err)
}

func TestNew_DefaultTimeout(t *testing.T) {
	c := New("http://classifier", 0)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
	assert.Equal(t, "http://classifier", c.baseURL)
}
