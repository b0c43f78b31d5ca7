package adapter

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
)

// ErrObjectNotFound is returned by Storage.Get for a missing key
var ErrObjectNotFound = goerr.New("object not found")

// Storage archives conversation entries that are too large for a repository document
type Storage interface {
	// Put writes data under key, replacing any existing object
	Put(ctx context.Context, key string, data []byte) error
	// Get reads the object stored under key
	Get(ctx context.Context, key string) ([]byte, error)
}

// storageClient implements Storage interface using Cloud Storage
type storageClient struct {
	bucketName string
	client     *storage.Client
}

// NewStorage creates a new Cloud Storage client
func NewStorage(ctx context.Context, bucketName string) (Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &storageClient{
		bucketName: bucketName,
		client:     client,
	}, nil
}

func (s *storageClient) Put(ctx context.Context, key string, data []byte) error {
	writer := s.client.Bucket(s.bucketName).Object(key).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return goerr.Wrap(err, "failed to write object", goerr.V("key", key))
	}
	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to close object writer", goerr.V("key", key))
	}
	return nil
}

func (s *storageClient) Get(ctx context.Context, key string) ([]byte, error) {
	reader, err := s.client.Bucket(s.bucketName).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, goerr.Wrap(ErrObjectNotFound, "no such object", goerr.V("key", key))
		}
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.V("key", key))
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read object body", goerr.V("key", key))
	}
	return data, nil
}
