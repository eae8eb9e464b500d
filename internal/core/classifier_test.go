package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildClassifierContextInclusiveThreshold(t *testing.T) {
	probs := []float64{0.1, 0.4, 0.05, 0.92, 0.0, 0.39, 0.0, 0.0}
	cc := BuildClassifierContext("문장", probs, 0.4)

	assert.True(t, cc.Available)
	assert.Equal(t, []string{"외모차별", "욕설"}, cc.Active)
	assert.InDelta(t, 0.92, cc.Probabilities["욕설"], 1e-9)
	assert.Contains(t, cc.Summary, "입력 문장: \"문장\"")
	assert.Contains(t, cc.Summary, "혐오 탐지됨! 속성: 외모차별, 욕설")
	assert.True(t, cc.Include())
}

func TestBuildClassifierContextNoneActive(t *testing.T) {
	cc := BuildClassifierContext("평범한 문장", make([]float64, len(ClassifierLabels)), 0.4)

	assert.Empty(t, cc.Active)
	assert.Contains(t, cc.Summary, "판단 유보")
	assert.False(t, cc.Include())
}

func TestClassifierClientClassify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/predict":
			var req predictRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text != "이 한남충아" {
				http.Error(w, "unexpected request", http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(predictResponse{Probabilities: []float64{0, 0, 0, 0.8, 0, 0.7, 0, 0}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClassifierClient(srv.URL+"/", 0.4, time.Second, zap.NewNop())
	require.True(t, c.Ready())
	require.NoError(t, c.Health(context.Background()))

	cc := c.Classify(context.Background(), "이 한남충아")
	assert.True(t, cc.Available)
	assert.Equal(t, []string{"욕설", "성차별"}, cc.Active)
}

func TestClassifierClientDegrades(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}},
		{"wrong length", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(predictResponse{Probabilities: []float64{0.9}})
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			cc := NewClassifierClient(srv.URL, 0.4, time.Second, zap.NewNop()).Classify(context.Background(), "문장")
			assert.False(t, cc.Available)
			assert.Equal(t, ClassifierUnavailableSummary, cc.Summary)
			assert.False(t, cc.Include())
		})
	}
}

func TestClassifierClientUsesConfiguredTimeout(t *testing.T) {
	c := NewClassifierClient("http://localhost:8000", 0.4, 3*time.Second, zap.NewNop())
	assert.Equal(t, 3*time.Second, c.httpClient.Timeout)

	c = NewClassifierClient("http://localhost:8000", 0.4, 0, zap.NewNop())
	assert.Equal(t, defaultClassifierTimeout, c.httpClient.Timeout)
	assert.Equal(t, defaultClassifierTimeout, c.timeout)
}

func TestClassifierClientTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cc := NewClassifierClient(srv.URL, 0.4, 50*time.Millisecond, zap.NewNop()).Classify(context.Background(), "문장")
	assert.False(t, cc.Available)
	assert.Equal(t, ClassifierUnavailableSummary, cc.Summary)
}
