// internal/deploy/gcs.go
//
// Cloud Storage bucket upload.  Objects are keyed <prefix>/<rel>, with the
// prefix defaulting to <deploy.gcs.prefix>/<id>.
package deploy

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yanizio/dirsite/internal/config"
)

// GCS uploads to a Cloud Storage bucket.  Without a credentials file the
// application-default credentials apply.
type GCS struct {
	cfg config.GCS
}

func (d *GCS) Name() string { return "gcs" }

func (d *GCS) Deploy(ctx context.Context, t Target) error {
	files, err := collect(t.Dir)
	if err != nil {
		return err
	}

	var opts []option.ClientOption
	if d.cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(d.cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return fmt.Errorf("gcs client: %w", err)
	}
	defer client.Close()

	bucket := client.Bucket(t.Option("bucket", d.cfg.Bucket))
	prefix := t.Option("prefix", objectKey(d.cfg.Prefix, t.DirectoryID))
	for _, f := range files {
		key := objectKey(prefix, f.Rel)
		if err := putGCS(ctx, bucket.Object(key), f); err != nil {
			return fmt.Errorf("gcs put %s: %w", key, err)
		}
	}
	return nil
}

func putGCS(ctx context.Context, obj *storage.ObjectHandle, f file) error {
	src, err := os.Open(f.Abs)
	if err != nil {
		return err
	}
	defer src.Close()

	w := obj.NewWriter(ctx)
	w.ContentType = contentType(f.Rel)
	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
