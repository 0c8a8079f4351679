// Package source abstracts where log files come from: the local filesystem
// or an S3-compatible object store.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
)

// Source is one log file to ingest.
type Source interface {
	// Name identifies the source in logs and error reports.
	Name() string
	// Open returns the raw byte stream. The caller closes it.
	Open(ctx context.Context) (io.ReadCloser, error)
	// Compressed reports whether the stream is gzip-compressed.
	Compressed() bool
}

// ReadError reports one unreadable source. The file is skipped and counted;
// the run continues with the remaining sources.
type ReadError struct {
	Source string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read source %s: %v", e.Source, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// File is a log file on the local filesystem.
type File struct {
	Path string
}

func (f File) Name() string { return f.Path }

func (f File) Open(_ context.Context) (io.ReadCloser, error) {
	r, err := os.Open(f.Path)
	if err != nil {
		return nil, &ReadError{Source: f.Path, Err: err}
	}
	return r, nil
}

func (f File) Compressed() bool { return strings.HasSuffix(f.Path, ".gz") }

// Object is a log file in an S3-compatible bucket.
type Object struct {
	Client *minio.Client
	Bucket string
	Key    string
}

func (o Object) Name() string { return fmt.Sprintf("s3://%s/%s", o.Bucket, o.Key) }

func (o Object) Open(ctx context.Context) (io.ReadCloser, error) {
	obj, err := o.Client.GetObject(ctx, o.Bucket, o.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &ReadError{Source: o.Name(), Err: err}
	}
	// GetObject is lazy; surface missing keys and permission problems now
	// rather than as a mid-stream read failure.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, &ReadError{Source: o.Name(), Err: err}
	}
	return obj, nil
}

func (o Object) Compressed() bool { return strings.HasSuffix(o.Key, ".gz") }

// Glob expands local path patterns into file sources, ordered by path.
func Glob(patterns []string) ([]Source, error) {
	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad glob pattern %q: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, File{Path: p})
	}
	return sources, nil
}

// ListObjects enumerates log objects under a bucket prefix, ordered by key.
// Only .log and .gz keys are considered log files.
func ListObjects(ctx context.Context, client *minio.Client, bucket, prefix string) ([]Source, error) {
	var sources []Source
	for obj := range client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", bucket, prefix, obj.Err)
		}
		if !strings.HasSuffix(obj.Key, ".log") && !strings.HasSuffix(obj.Key, ".gz") {
			continue
		}
		sources = append(sources, Object{Client: client, Bucket: bucket, Key: obj.Key})
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name() < sources[j].Name() })
	return sources, nil
}
