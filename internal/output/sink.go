package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/koustreak/dbmeta/internal/errs"
	"github.com/koustreak/dbmeta/internal/filestore"
)

// Sink stores one named file.
type Sink interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
}

// DirSink writes files into a local directory. Each file is written to a
// temporary name first and renamed, so readers never see a partial file.
type DirSink struct {
	Dir string
}

func (s DirSink) Put(_ context.Context, name string, data []byte, _ string) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return errs.Wrap(errs.Permission, "creating output directory", err)
	}
	tmp, err := os.CreateTemp(s.Dir, "."+name+".*")
	if err != nil {
		return errs.Wrap(errs.Permission, "creating "+name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errs.Wrap(errs.Other, "writing "+name, err)
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(errs.Other, "writing "+name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.Dir, name)); err != nil {
		return errs.Wrap(errs.Other, "renaming "+name, err)
	}
	return nil
}

// ObjectSink uploads files to object storage under the configured prefix.
type ObjectSink struct {
	store filestore.Store
	cfg   *filestore.Config
}

// NewObjectSink makes sure the target bucket exists.
func NewObjectSink(ctx context.Context, store filestore.Store, cfg *filestore.Config) (*ObjectSink, error) {
	if err := store.EnsureBucket(ctx, cfg.Bucket); err != nil {
		return nil, err
	}
	return &ObjectSink{store: store, cfg: cfg}, nil
}

func (s *ObjectSink) Put(ctx context.Context, name string, data []byte, contentType string) error {
	_, err := s.store.Put(ctx, s.cfg.Bucket, s.cfg.Key(name), data, contentType)
	return err
}

// Tee writes every file to each sink in order and stops at the first error.
type Tee []Sink

func (t Tee) Put(ctx context.Context, name string, data []byte, contentType string) error {
	for i, s := range t {
		if err := s.Put(ctx, name, data, contentType); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}
