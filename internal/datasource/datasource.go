// Package datasource opens the raw bytes a pipeline loads. Concrete sources
// live in subpackages (file, httpds, gcs); FromConfig picks one from a
// pipeline's source block.
package datasource

import (
	"context"
	"fmt"
	"io"
	"time"

	"breachetl/internal/config"
	"breachetl/internal/datasource/file"
	"breachetl/internal/datasource/gcs"
	"breachetl/internal/datasource/httpds"
	"breachetl/internal/etlerr"
)

// Source yields a fresh reader over the input. Callers close it.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FromConfig builds the Source described by s.
func FromConfig(s config.Source) (Source, error) {
	switch s.Kind {
	case "file":
		return file.NewLocal(s.File.Path), nil
	case "http":
		return httpds.NewSource(s.HTTP.URL, httpds.Config{
			Timeout:            time.Duration(s.HTTP.TimeoutSeconds) * time.Second,
			MaxRetries:         s.HTTP.MaxRetries,
			InsecureSkipVerify: s.HTTP.InsecureSkipVerify,
		}), nil
	case "gcs":
		if s.GCS.URI != "" {
			o, err := gcs.FromURI(s.GCS.URI)
			if err != nil {
				return nil, err
			}
			return o, nil
		}
		return gcs.NewObject(s.GCS.Bucket, s.GCS.Object), nil
	default:
		return nil, etlerr.New(etlerr.ErrConfig, "datasource", fmt.Errorf("unknown source kind %q", s.Kind))
	}
}
