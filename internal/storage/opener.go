package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrNotFound is returned when a source location does not exist.
var ErrNotFound = errors.New("source not found")

// Opener reads source files from disk or S3. The S3 client is created on
// first use so local-only runs never touch AWS config.
type Opener struct {
	aws AWSOptions

	mu     sync.Mutex
	client S3API
}

// NewOpener returns an opener that builds its S3 client from opts.
func NewOpener(opts AWSOptions) *Opener {
	return &Opener{aws: opts}
}

// NewOpenerWithClient returns an opener using an existing S3 client.
func NewOpenerWithClient(client S3API) *Opener {
	return &Opener{client: client}
}

// Open returns a reader for loc. The caller closes it.
func (o *Opener) Open(ctx context.Context, loc Location) (io.ReadCloser, error) {
	if !loc.IsS3() {
		f, err := os.Open(loc.Path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
			}
			return nil, fmt.Errorf("open %s: %w", loc, err)
		}
		return f, nil
	}

	client, err := o.s3Client(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
		}
		return nil, fmt.Errorf("S3 GetObject %s: %w", loc, err)
	}
	return resp.Body, nil
}

func (o *Opener) s3Client(ctx context.Context) (S3API, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.client != nil {
		return o.client, nil
	}
	c, err := NewS3Client(ctx, o.aws)
	if err != nil {
		return nil, err
	}
	o.client = c
	return c, nil
}
