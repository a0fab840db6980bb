// internal/deploy/s3.go
//
// S3 (and S3-compatible) bucket upload.
package deploy

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yanizio/dirsite/internal/config"
)

// S3 uploads through the multipart upload manager.  Static keys are used
// when configured; otherwise the default AWS credential chain applies.  A
// custom endpoint (MinIO, R2) switches to path-style addressing.
type S3 struct {
	cfg config.S3
}

func (d *S3) Name() string { return "s3" }

func (d *S3) client(ctx context.Context) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if d.cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(d.cfg.Region))
	}
	if d.cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(d.cfg.AccessKey, d.cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if d.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(d.cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (d *S3) Deploy(ctx context.Context, t Target) error {
	files, err := collect(t.Dir)
	if err != nil {
		return err
	}
	client, err := d.client(ctx)
	if err != nil {
		return err
	}
	up := manager.NewUploader(client)

	bucket := t.Option("bucket", d.cfg.Bucket)
	prefix := t.Option("prefix", objectKey(d.cfg.Prefix, t.DirectoryID))
	for _, f := range files {
		if err := d.put(ctx, up, bucket, objectKey(prefix, f.Rel), f); err != nil {
			return err
		}
	}
	return nil
}

func (d *S3) put(ctx context.Context, up *manager.Uploader, bucket, key string, f file) error {
	body, err := os.Open(f.Abs)
	if err != nil {
		return err
	}
	defer body.Close()

	_, err = up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType(f.Rel)),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}
