// Package output persists a run's Output through a codec into one or more
// sinks.
//
// Bundle mode writes a single file. Per-database mode writes one file per
// selected database and then the manifest, so a manifest is only present
// once every file it lists has been written.
package output

import (
	"context"
	"fmt"

	"github.com/koustreak/dbmeta/internal/codec"
	"github.com/koustreak/dbmeta/internal/logger"
	"github.com/koustreak/dbmeta/internal/orchestrator"
)

// BundleFile is the stem of the bundle-mode output file.
const BundleFile = "bundle"

type Writer struct {
	codec *codec.Codec
	sink  Sink
	log   *logger.Logger
}

func NewWriter(c *codec.Codec, sink Sink, log *logger.Logger) *Writer {
	if log == nil {
		log = logger.Nop()
	}
	return &Writer{codec: c, sink: sink, log: log}
}

// Write persists out and returns the names written, in write order.
func (w *Writer) Write(ctx context.Context, out orchestrator.Output) ([]string, error) {
	switch o := out.(type) {
	case *orchestrator.Bundle:
		name := BundleFile + w.codec.Extension()
		if err := w.put(ctx, name, o); err != nil {
			return nil, err
		}
		return []string{name}, nil

	case *orchestrator.PerDatabase:
		written := make([]string, 0, len(o.Schemas)+1)
		for _, ns := range o.Schemas {
			name := ns.File + w.codec.Extension()
			if err := w.put(ctx, name, ns.Schema); err != nil {
				return written, err
			}
			written = append(written, name)
		}

		m := o.Manifest
		m.Extension = w.codec.Extension()
		name := orchestrator.ManifestFile + m.Extension
		if err := w.put(ctx, name, m); err != nil {
			return written, err
		}
		return append(written, name), nil

	default:
		return nil, fmt.Errorf("unsupported output %T", out)
	}
}

func (w *Writer) put(ctx context.Context, name string, v any) error {
	data, err := w.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	if err := w.sink.Put(ctx, name, data, w.codec.ContentType()); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	w.log.With().Str("file", name).Int("bytes", len(data)).Logger().Debug("wrote output file")
	return nil
}
