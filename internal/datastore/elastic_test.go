package datastore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerage-insights/internal/common/logger"
)

func newTestIndex(t *testing.T, handler http.HandlerFunc) *ElasticNameIndex {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewElasticNameIndex(client, "agents", logger.NewTestLogger(t))
}

func TestElasticNameIndex_LookupUserID(t *testing.T) {
	var body map[string]interface{}
	index := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agents/_search", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":1},"hits":[{"_score":4.2,"_source":{"user_id":1234567,"full_name":"Jane Doe"}}]}}`))
	})

	id, ok, err := index.LookupUserID(context.Background(), "jane doe")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1234567", id)
	assert.EqualValues(t, 1, body["size"])
}

func TestBuildNameQuery_ExactBeforeSubstring(t *testing.T) {
	q := buildNameQuery("Jane Doe")
	should := q["query"].(map[string]interface{})["bool"].(map[string]interface{})["should"].([]interface{})
	require.Len(t, should, 4)

	exact := should[0].(map[string]interface{})["term"].(map[string]interface{})["full_name.keyword"].(map[string]interface{})
	substring := should[1].(map[string]interface{})["wildcard"].(map[string]interface{})["full_name.keyword"].(map[string]interface{})

	assert.Equal(t, "Jane Doe", exact["value"])
	assert.Equal(t, true, exact["case_insensitive"])
	assert.Equal(t, "*jane doe*", substring["value"])
	assert.Greater(t, exact["boost"].(int), substring["boost"].(int))
}

func TestElasticNameIndex_NoHits(t *testing.T) {
	index := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":0},"hits":[]}}`))
	})

	_, ok, err := index.LookupUserID(context.Background(), "nobody here")

	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestElasticNameIndex_ErrorStatus(t *testing.T) {
	index := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"},"status":404}`))
	})

	_, _, err := index.LookupUserID(context.Background(), "jane doe")

	assert.ErrorIs(t, err, ErrLookupFailed)
}

func TestIndexedIdentityStore_NameGoesThroughIndex(t *testing.T) {
	index := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_source":{"user_id":"42","full_name":"Sarah Lee"}}]}}`))
	})
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE uc.USER_ID = $1")).
		WithArgs("42").
		WillReturnRows(identityRows().AddRow(int64(42), "Sarah", "Lee", 14, 1))

	identities := NewIndexedIdentityStore(store, index)
	id, err := identities.FetchIdentityByFuzzyName(context.Background(), "sara lee")

	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "Sarah Lee", id.DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
