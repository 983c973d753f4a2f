// Package unpack fetches registry dump archives and extracts them into the
// working directory an ingestion run reads from.
package unpack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"
)

const s3Scheme = "s3://"

// ObjectGetter is the part of the S3 client used to stream archives.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Opener opens dump archives from local paths or s3://bucket/key locations.
// The S3 client is created on first use from the default AWS configuration.
type Opener struct {
	mu sync.Mutex
	s3 ObjectGetter
}

func NewOpener(client ObjectGetter) *Opener {
	return &Opener{s3: client}
}

func (o *Opener) s3Client(ctx context.Context) (ObjectGetter, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.s3 != nil {
		return o.s3, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	o.s3 = s3.NewFromConfig(cfg)
	return o.s3, nil
}

// Open returns the decompressed content at location. Locations ending in .gz
// are gunzipped on the fly.
func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	raw, err := o.openRaw(ctx, location)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(strings.ToLower(location), ".gz") {
		return raw, nil
	}
	zr, err := gzip.NewReader(raw)
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("gunzip %s: %w", location, err)
	}
	return &gzipReadCloser{Reader: zr, raw: raw}, nil
}

func (o *Opener) openRaw(ctx context.Context, location string) (io.ReadCloser, error) {
	if !strings.HasPrefix(location, s3Scheme) {
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		return f, nil
	}

	bucket, key, ok := strings.Cut(strings.TrimPrefix(location, s3Scheme), "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid s3 location %q", location)
	}
	client, err := o.s3Client(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object s3://%s/%s: %w", bucket, key, err)
	}
	return resp.Body, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	raw io.Closer
}

func (g *gzipReadCloser) Close() error {
	return errors.Join(g.Reader.Close(), g.raw.Close())
}

// Prepare extracts the archive at location into dir/name and returns the path
// of the extracted dump. The file is written under a temporary name first so
// a failed extraction never leaves a truncated dump behind.
func (o *Opener) Prepare(ctx context.Context, location, dir, name string) (string, error) {
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(location), ".gz")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create unpack dir: %w", err)
	}

	src, err := o.Open(ctx, location)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dest := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, name+".*.part")
	if err != nil {
		return "", fmt.Errorf("create extraction file: %w", err)
	}
	tmpName := tmp.Name()

	n, copyErr := io.Copy(tmp, &contextReader{ctx: ctx, r: src})
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("extract %s: %w", location, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("move extracted dump: %w", err)
	}

	log.Info("Dump extracted", "archive", location, "path", dest, "bytes", n)
	return dest, nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
