package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"brokerage-insights/internal/common/logger"
	"brokerage-insights/internal/models"
)

// ElasticNameIndex finds user ids by spoken name in an index of
// {"user_id", "full_name", "active"} documents.
type ElasticNameIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewElasticNameIndex(client *elasticsearch.Client, index string, log logger.Logger) *ElasticNameIndex {
	return &ElasticNameIndex{
		client: client,
		index:  index,
		logger: log.Named("name-index"),
	}
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

// buildNameQuery ranks an exact full name first, then full-name substrings, then
// analyzed phrase and fuzzy matches for transcription slips. full_name needs a
// keyword subfield.
func buildNameQuery(name string) map[string]interface{} {
	lower := wildcardEscaper.Replace(strings.ToLower(name))
	return map[string]interface{}{
		"size": 1,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{
							"full_name.keyword": map[string]interface{}{"value": name, "case_insensitive": true, "boost": 20},
						},
					},
					map[string]interface{}{
						"wildcard": map[string]interface{}{
							"full_name.keyword": map[string]interface{}{"value": "*" + lower + "*", "case_insensitive": true, "boost": 10},
						},
					},
					map[string]interface{}{
						"match_phrase": map[string]interface{}{
							"full_name": map[string]interface{}{"query": name, "boost": 3},
						},
					},
					map[string]interface{}{
						"match": map[string]interface{}{
							"full_name": map[string]interface{}{"query": name, "fuzziness": "AUTO"},
						},
					},
				},
				"minimum_should_match": 1,
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"active": true}},
				},
			},
		},
		"sort": []interface{}{
			"_score",
			map[string]interface{}{"user_id": map[string]interface{}{"order": "asc"}},
		},
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source struct {
				UserID   interface{} `json:"user_id"`
				FullName string      `json:"full_name"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// LookupUserID returns the best-scoring active user id for name.
func (n *ElasticNameIndex) LookupUserID(ctx context.Context, name string) (string, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, nil
	}

	body, err := json.Marshal(buildNameQuery(name))
	if err != nil {
		return "", false, err
	}

	res, err := n.client.Search(
		n.client.Search.WithContext(ctx),
		n.client.Search.WithIndex(n.index),
		n.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return "", false, fmt.Errorf("%w: search: %v", ErrLookupFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return "", false, fmt.Errorf("%w: search: %s", ErrLookupFailed, res.Status())
	}

	var parsed searchResponse
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil {
		return "", false, fmt.Errorf("%w: decode: %v", ErrLookupFailed, err)
	}
	if len(parsed.Hits.Hits) == 0 || parsed.Hits.Hits[0].Source.UserID == nil {
		return "", false, nil
	}

	id := fmt.Sprint(parsed.Hits.Hits[0].Source.UserID)
	n.logger.Debug("Name index hit", map[string]interface{}{
		"userId": id,
	})
	return id, true, nil
}

// IndexedIdentityStore resolves names through the search index and ids through Postgres.
type IndexedIdentityStore struct {
	store *PostgresStore
	index *ElasticNameIndex
}

func NewIndexedIdentityStore(store *PostgresStore, index *ElasticNameIndex) *IndexedIdentityStore {
	return &IndexedIdentityStore{store: store, index: index}
}

func (s *IndexedIdentityStore) FetchIdentityByID(ctx context.Context, id string) (*models.Identity, error) {
	return s.store.FetchIdentityByID(ctx, id)
}

func (s *IndexedIdentityStore) FetchIdentityByFuzzyName(ctx context.Context, name string) (*models.Identity, error) {
	id, ok, err := s.index.LookupUserID(ctx, name)
	if err != nil || !ok {
		return nil, err
	}
	return s.store.FetchIdentityByID(ctx, id)
}
