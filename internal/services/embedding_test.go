package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/matching"
	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/models"
)

func TestReportText(t *testing.T) {
	tests := []struct {
		name     string
		report   models.Report
		expected string
	}{
		{
			name: "all fields",
			report: models.Report{
				Title:       "Black wallet",
				Description: "Leather, found near the station",
				Attributes:  models.Attributes{Color: "black", Brand: "Wittchen", Model: "Classic"},
			},
			expected: "Black wallet Leather, found near the station Wittchen Classic black",
		},
		{
			name: "absent values are skipped",
			report: models.Report{
				Title:      "Keys",
				Attributes: models.Attributes{Color: "silver"},
			},
			expected: "Keys silver",
		},
		{
			name:     "empty report",
			report:   models.Report{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ReportText(&tt.report))
		})
	}
}

func TestEmbeddingService_Embed(t *testing.T) {
	var received EmbedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding": [0.1, 0.2, 0.3], "dimension": 3}`))
	}))
	defer server.Close()

	svc := NewEmbeddingService(server.URL+"/", time.Second)
	report := &models.Report{ID: "r1", Title: "Phone", Attributes: models.Attributes{Brand: "Nokia"}}

	embedding := svc.Embed(context.Background(), report)

	assert.Equal(t, []float64{0.1, 0.2, 0.3}, embedding)
	assert.Equal(t, "Phone Nokia", received.Text)
}

func TestEmbeddingService_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not loaded", http.StatusServiceUnavailable)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"embedding": "nope"`))
			},
		},
		{
			name: "wrong shape",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"vector": [1, 2]}`))
			},
		},
		{
			name: "empty embedding",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"embedding": []}`))
			},
		},
		{
			name: "dimension mismatch",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"embedding": [1, 2], "dimension": 384}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			svc := NewEmbeddingService(server.URL, time.Second)

			_, err := svc.EmbedText(context.Background(), "text")
			assert.ErrorIs(t, err, matching.ErrUpstreamUnavailable)
			assert.Nil(t, svc.Embed(context.Background(), &models.Report{ID: "r1"}))
		})
	}
}

func TestEmbeddingService_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	svc := NewEmbeddingService(server.URL, 50*time.Millisecond)

	start := time.Now()
	embedding := svc.Embed(context.Background(), &models.Report{ID: "r1", Title: "slow"})

	assert.Nil(t, embedding)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestEmbeddingService_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewEmbeddingService(url, time.Second).EmbedText(context.Background(), "text")
	assert.ErrorIs(t, err, matching.ErrUpstreamUnavailable)
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	svc := NewEmbeddingService("", 0)

	assert.Equal(t, "http://localhost:8000", svc.endpoint)
	assert.Equal(t, DefaultEmbeddingTimeout, svc.client.Timeout)
}
