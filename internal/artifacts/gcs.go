package artifacts

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/rdmdatalab/econbench/pkg/errors"
)

// ParseGCSURI splits a gs://bucket/path/to/object URI into its bucket and
// object parts.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", errors.NewValidationError("gcs_uri", uri, "must start with gs://")
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", errors.NewValidationError("gcs_uri", uri, "must name a bucket and an object")
	}
	return bucket, object, nil
}

// Uploader pushes local artifact files to Cloud Storage. Callers treat
// upload failures as warnings; the local file is the artifact of record.
type Uploader struct {
	client *storage.Client
}

// NewUploader creates a Cloud Storage uploader using application default
// credentials.
func NewUploader(ctx context.Context) (*Uploader, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, &errors.ConfigError{
			Component: "gcs",
			Message:   "failed to create storage client",
			Err:       err,
		}
	}
	return &Uploader{client: client}, nil
}

// Upload copies the local file at path to gs://<bucket>/<object>.
func (u *Uploader) Upload(ctx context.Context, bucket, object, path string) error {
	f, err := os.Open(path) //nolint:gosec // Artifact paths are operator-controlled
	if err != nil {
		return errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()

	w := u.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentTypeFor(path)

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return errors.WrapIO("upload", "gs://"+bucket+"/"+object, err)
	}
	if err := w.Close(); err != nil {
		return errors.WrapIO("upload", "gs://"+bucket+"/"+object, err)
	}
	return nil
}

// Close closes the underlying storage client.
func (u *Uploader) Close() error {
	return u.client.Close()
}

func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".md":
		return "text/markdown"
	default:
		return "application/octet-stream"
	}
}
