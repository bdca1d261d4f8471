// Package gcs reads pipeline input from a Google Cloud Storage object.
// Credentials come from the environment (Application Default Credentials).
package gcs

import (
	"context"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"

	"breachetl/internal/etlerr"
)

// Object is a data source bound to one gs://bucket/object.
type Object struct {
	Bucket string
	Name   string

	// open is replaced in tests.
	open func(ctx context.Context, bucket, name string) (io.ReadCloser, error)
}

// NewObject returns a source for bucket/name.
func NewObject(bucket, name string) *Object {
	return &Object{Bucket: bucket, Name: name, open: openObject}
}

// FromURI parses "gs://bucket/path/to/object.csv".
func FromURI(uri string) (*Object, error) {
	bucket, name, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return NewObject(bucket, name), nil
}

// ParseURI splits a gs:// URI into bucket and object name.
func ParseURI(uri string) (bucket, name string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", etlerr.New(etlerr.ErrConfig, "gcs", xerrors.Errorf("parse %q: %w", uri, err))
	}
	if u.Scheme != "gs" || u.Host == "" {
		return "", "", etlerr.New(etlerr.ErrConfig, "gcs", xerrors.Errorf("%q is not a gs://bucket/object uri", uri))
	}
	name = strings.TrimPrefix(u.Path, "/")
	if name == "" {
		return "", "", etlerr.New(etlerr.ErrConfig, "gcs", xerrors.Errorf("%q has no object name", uri))
	}
	return u.Host, name, nil
}

// FullPath returns the gs:// form of the object.
func (o *Object) FullPath() string { return "gs://" + o.Bucket + "/" + o.Name }

func (o *Object) String() string { return o.FullPath() }

// Open starts a read of the object. Failures are ErrIO.
func (o *Object) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := o.open(ctx, o.Bucket, o.Name)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("object", o.FullPath()).Msg("failed to initialize object reader")
		return nil, etlerr.New(etlerr.ErrIO, "gcs read", xerrors.Errorf("failed to get reader of %s: %w", o.FullPath(), err))
	}
	return rc, nil
}

// openObject creates a client per read; the client is closed with the
// reader.
func openObject(ctx context.Context, bucket, name string) (io.ReadCloser, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to build storage client: %w", err)
	}
	r, err := client.Bucket(bucket).Object(name).NewReader(ctx)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &objectReader{Reader: r, client: client}, nil
}

type objectReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *objectReader) Close() error {
	err := r.Reader.Close()
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}
