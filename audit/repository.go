// audit/repository.go
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
)

type Repository interface {
	WriteRecord(ctx context.Context, record Record) (string, error)
	QueryRecords(ctx context.Context, from, to time.Time, actorID, resourceID string) ([]Record, error)
}

type ElasticsearchRepository struct {
	esClient *elasticsearch.Client
}

// NewElasticsearchRepository creates a new repository with a given Elasticsearch client URL.
func NewElasticsearchRepository(esURL string) (*ElasticsearchRepository, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esURL},
	}
	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ElasticsearchRepository{esClient: esClient}, nil
}

// WriteRecord indexes an audit record and returns its document ID. Refresh
// is forced so the record is durable before the caller proceeds.
func (r *ElasticsearchRepository) WriteRecord(ctx context.Context, record Record) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", err
	}

	documentID := uuid.New().String()
	req := esapi.IndexRequest{
		Index:      "authz-audit",
		DocumentID: documentID,
		Body:       strings.NewReader(string(data)),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, r.esClient)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.IsError() {
		return "", fmt.Errorf("error indexing document: %s", res.String())
	}

	return documentID, nil
}

// QueryRecords searches audit records within a time frame, optionally filtered by actorID and resourceID.
func (r *ElasticsearchRepository) QueryRecords(ctx context.Context, from, to time.Time, actorID, resourceID string) ([]Record, error) {
	must := []interface{}{
		map[string]interface{}{
			"range": map[string]interface{}{
				"timestamp": map[string]interface{}{
					"gte": from.Format(time.RFC3339),
					"lte": to.Format(time.RFC3339),
				},
			},
		},
	}

	if actorID != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{
				"actor_id": actorID,
			},
		})
	}

	if resourceID != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{
				"resource_id": resourceID,
			},
		})
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": must,
			},
		},
	}

	var buf strings.Builder
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := r.esClient.Search(
		r.esClient.Search.WithContext(ctx),
		r.esClient.Search.WithIndex("authz-audit"),
		r.esClient.Search.WithBody(strings.NewReader(buf.String())),
	)

	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error searching documents: %s", res.String())
	}

	var rmap map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&rmap); err != nil {
		return nil, err
	}

	hits := rmap["hits"].(map[string]interface{})["hits"].([]interface{})
	records := make([]Record, len(hits))
	for i, hit := range hits {
		source := hit.(map[string]interface{})["_source"]
		data, _ := json.Marshal(source)
		json.Unmarshal(data, &records[i])
	}

	return records, nil
}
