// Package filestore defines the object-storage target that collected files
// are uploaded to.
//
// Callers depend only on this package, never on a specific provider package.
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	err = store.Put(ctx, cfg.Bucket, cfg.Key("manifest.json"), data, "application/json")
package filestore

import "context"

// Store is the interface every storage provider implements.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// EnsureBucket creates bucket when it does not exist yet.
	EnsureBucket(ctx context.Context, bucket string) error

	// Put writes data to key inside bucket, replacing any existing object.
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) (*ObjectInfo, error)

	// Stat returns metadata for the object at key without downloading it.
	Stat(ctx context.Context, bucket, key string) (*ObjectInfo, error)
}
