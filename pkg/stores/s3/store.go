package s3

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/minio/minio-go/v7"
)

/*
Store provides the blob collaborator for oversized chunk payloads. Keys
follow the chunks/<hash>.json convention chosen by the memory writer.
*/
type Store struct {
	conn *Conn
	once sync.Once
}

/*
NewStore creates a new blob store with the given connection.
*/
func NewStore(conn *Conn) *Store {
	return &Store{conn: conn}
}

/*
Put writes a payload under key, creating the bucket on first use.
*/
func (store *Store) Put(ctx context.Context, key string, data []byte) error {
	var ensureErr error

	store.once.Do(func() {
		ensureErr = store.conn.EnsureBucket(ctx)
	})

	if ensureErr != nil {
		log.Error("failed to ensure bucket", "bucket", store.conn.bucket, "error", ensureErr)
		return ensureErr
	}

	_, err := store.conn.client.PutObject(
		ctx, store.conn.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)

	if err != nil {
		log.Error("failed to store blob", "key", key, "error", err)
	}

	return err
}

/*
Get retrieves a payload by key.
*/
func (store *Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := store.conn.client.GetObject(
		ctx, store.conn.bucket, key, minio.GetObjectOptions{},
	)

	if err != nil {
		log.Error("failed to get blob", "key", key, "error", err)
		return nil, err
	}

	defer obj.Close()

	return io.ReadAll(obj)
}
