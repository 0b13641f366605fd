package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/theapemachine/trill-go/pkg/memory"
)

// Client wraps a Qdrant endpoint + collection and implements the
// memory.VectorIndex interface over its REST API.
type Client struct {
	Endpoint   string // e.g. http://localhost:6333
	Collection string // e.g. "trill"
	httpClient *http.Client
}

// New returns a Client with sane defaults.
func New(endpoint, collection string) *Client {
	return &Client{
		Endpoint:   endpoint,
		Collection: collection,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// EnsureCollection creates the collection if it does not exist yet, using
// cosine distance at the given dimensionality.
func (client *Client) EnsureCollection(ctx context.Context, dimension int) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/collections/%s", client.Endpoint, client.Collection),
		nil,
	)

	if err != nil {
		return err
	}

	resp, err := client.httpClient.Do(req)

	if err != nil {
		return err
	}

	resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	payload := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}

	b, err := json.Marshal(payload)

	if err != nil {
		return err
	}

	createReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPut,
		fmt.Sprintf("%s/collections/%s", client.Endpoint, client.Collection),
		bytes.NewReader(b),
	)

	if err != nil {
		return err
	}

	createReq.Header.Set("Content-Type", "application/json")

	createResp, err := client.httpClient.Do(createReq)

	if err != nil {
		return err
	}

	createResp.Body.Close()

	if createResp.StatusCode >= 300 {
		return fmt.Errorf("qdrant: create collection status %s", createResp.Status)
	}

	return nil
}

// Upsert writes a batch of points. The namespace travels inside the
// payload; Qdrant has no native namespace concept.
func (client *Client) Upsert(ctx context.Context, points []memory.Point) error {
	qdrantPoints := make([]map[string]any, 0, len(points))

	for _, p := range points {
		payload := p.Payload

		if payload == nil {
			payload = map[string]any{}
		}

		payload[memory.KeyNamespace] = p.Namespace

		qdrantPoints = append(qdrantPoints, map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": payload,
		})
	}

	body, err := json.Marshal(map[string]any{"points": qdrantPoints})

	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPut,
		fmt.Sprintf("%s/collections/%s/points", client.Endpoint, client.Collection),
		bytes.NewReader(body),
	)

	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.httpClient.Do(req)

	if err != nil {
		return err
	}

	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant: upsert status %s", resp.Status)
	}

	return nil
}

// Query performs a vector search, translating the flat key/value filter
// into Qdrant must/match conditions. Scores come back as the collection's
// native cosine similarity.
func (client *Client) Query(
	ctx context.Context, vector []float32, filter map[string]string, topK int,
) ([]memory.Match, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}

	if len(filter) > 0 {
		conditions := make([]map[string]any, 0, len(filter))

		for key, value := range filter {
			conditions = append(conditions, map[string]any{
				"key":   key,
				"match": map[string]any{"value": value},
			})
		}

		body["filter"] = map[string]any{"must": conditions}
	}

	b, err := json.Marshal(body)

	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/collections/%s/points/search", client.Endpoint, client.Collection),
		bytes.NewReader(b),
	)

	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.httpClient.Do(req)

	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant: search status %s", resp.Status)
	}

	var out struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	matches := make([]memory.Match, 0, len(out.Result))

	for _, r := range out.Result {
		matches = append(matches, memory.Match{
			ID:      r.ID,
			Score:   r.Score,
			Payload: r.Payload,
		})
	}

	return matches, nil
}

// Ping checks the connection to the Qdrant server.
func (client *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/collections", client.Endpoint),
		nil,
	)

	if err != nil {
		return err
	}

	resp, err := client.httpClient.Do(req)

	if err != nil {
		return err
	}

	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant: ping status %s", resp.Status)
	}

	return nil
}
