package memory

import (
	"context"
	"fmt"
)

// fakeIndex records upserts and serves canned query results.
type fakeIndex struct {
	points []Point

	matches    []Match
	lastFilter map[string]string
	lastTopK   int

	failUpsert func(points []Point) error
	queryErr   error
}

func (f *fakeIndex) Upsert(ctx context.Context, points []Point) error {
	if f.failUpsert != nil {
		if err := f.failUpsert(points); err != nil {
			return err
		}
	}

	f.points = append(f.points, points...)
	return nil
}

func (f *fakeIndex) Query(
	ctx context.Context, vector []float32, filter map[string]string, topK int,
) ([]Match, error) {
	f.lastFilter = filter
	f.lastTopK = topK

	if f.queryErr != nil {
		return nil, f.queryErr
	}

	return f.matches, nil
}

// fakeBlobs is an in-memory BlobStore.
type fakeBlobs struct {
	objects map[string][]byte
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}}
}

func (f *fakeBlobs) Put(ctx context.Context, key string, data []byte) error {
	f.objects[key] = data
	return nil
}

func (f *fakeBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]

	if !ok {
		return nil, fmt.Errorf("no object at %s", key)
	}

	return data, nil
}

// fakeStats is an in-memory StatsCache.
type fakeStats struct {
	values map[string]string
	setErr error
}

func newFakeStats() *fakeStats {
	return &fakeStats{values: map[string]string{}}
}

func (f *fakeStats) Get(ctx context.Context, key string) (string, error) {
	value, ok := f.values[key]

	if !ok {
		return "", ErrCacheMiss
	}

	return value, nil
}

func (f *fakeStats) Set(ctx context.Context, key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}

	f.values[key] = value
	return nil
}

// recordingEmbedder wraps MockEmbedder and remembers every text it embeds.
type recordingEmbedder struct {
	MockEmbedder
	texts []string
}

func (r *recordingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	r.texts = append(r.texts, text)
	return r.MockEmbedder.Embed(ctx, text)
}
