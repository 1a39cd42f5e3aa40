package database

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerage-insights/internal/common/config"
)

func newTestElastic(t *testing.T, status int) *ElasticsearchClient {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		if r.Method == http.MethodHead {
			assert.Equal(t, "/agents", r.URL.Path)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	es, err := NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL}, time.Second)
	require.NoError(t, err)
	return es
}

func TestElasticsearchClient_CheckIndex(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr string
	}{
		{"present", http.StatusOK, ""},
		{"missing", http.StatusNotFound, `index "agents" does not exist`},
		{"cluster error", http.StatusServiceUnavailable, "index check error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			es := newTestElastic(t, tt.status)
			err := es.CheckIndex(context.Background(), "agents")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestElasticsearchClient_Ping(t *testing.T) {
	assert.NoError(t, newTestElastic(t, http.StatusOK).Ping(context.Background()))
	assert.Error(t, newTestElastic(t, http.StatusInternalServerError).Ping(context.Background()))
}
