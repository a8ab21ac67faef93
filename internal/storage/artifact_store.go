package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/claims-pipeline/internal/pkg/logger"
)

// Artifact is one fully rendered output file.
type Artifact struct {
	Name        string
	Body        []byte
	ContentType string
}

// ArtifactStore persists a run's artifacts.
type ArtifactStore interface {
	// Write stores every artifact or, on error, leaves none of this call's
	// artifacts behind.
	Write(ctx context.Context, artifacts []Artifact) error
	// Location returns where an artifact with this name ends up.
	Location(name string) string
}

// LocalStore writes artifacts into a directory.
type LocalStore struct {
	dir    string
	rename func(oldpath, newpath string) error
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, rename: os.Rename}, nil
}

func (s *LocalStore) Location(name string) string {
	return filepath.Join(s.dir, name)
}

// Write stages every artifact in a temp file next to its target, moves
// any existing targets aside, then renames the staged files into place.
// If a rename fails, targets already replaced are rolled back to their
// previous contents.
func (s *LocalStore) Write(ctx context.Context, artifacts []Artifact) error {
	staged := make([]string, 0, len(artifacts))
	removeStaged := func() {
		for _, p := range staged {
			os.Remove(p)
		}
	}

	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			removeStaged()
			return err
		}
		tmp, err := os.CreateTemp(s.dir, "."+a.Name+".*.tmp")
		if err != nil {
			removeStaged()
			return fmt.Errorf("stage %s: %w", a.Name, err)
		}
		staged = append(staged, tmp.Name())
		if _, err := tmp.Write(a.Body); err != nil {
			tmp.Close()
			removeStaged()
			return fmt.Errorf("write %s: %w", a.Name, err)
		}
		if err := tmp.Close(); err != nil {
			removeStaged()
			return fmt.Errorf("close %s: %w", a.Name, err)
		}
	}

	// backups[i] is "" when target i did not exist before this call.
	backups := make([]string, len(artifacts))
	placed := 0
	rollback := func() {
		for i := placed - 1; i >= 0; i-- {
			target := s.Location(artifacts[i].Name)
			os.Remove(target)
		}
		for i, b := range backups {
			if b == "" {
				continue
			}
			if err := s.rename(b, s.Location(artifacts[i].Name)); err != nil {
				logger.Error("restore artifact failed", "artifact", artifacts[i].Name, "backup", b, "error", err)
			}
		}
		removeStaged()
	}

	for i, a := range artifacts {
		target := s.Location(a.Name)
		if _, err := os.Stat(target); err == nil {
			b := fmt.Sprintf("%s.%d.bak", filepath.Join(s.dir, "."+a.Name), time.Now().UnixNano())
			if err := s.rename(target, b); err != nil {
				rollback()
				return fmt.Errorf("back up %s: %w", a.Name, err)
			}
			backups[i] = b
		}
	}
	for i, a := range artifacts {
		if err := s.rename(staged[i], s.Location(a.Name)); err != nil {
			rollback()
			return fmt.Errorf("rename %s: %w", a.Name, err)
		}
		placed++
	}

	for _, b := range backups {
		if b != "" {
			os.Remove(b)
		}
	}
	return nil
}

// S3Store uploads artifacts under bucket/prefix.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Store wraps an S3 client.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *S3Store) Location(name string) string {
	return "s3://" + s.bucket + "/" + s.key(name)
}

// Write uploads each artifact with PutObject. If an upload fails, the
// objects already put by this call are deleted so the prefix never holds
// a mixed set. Objects from an earlier run under the same keys are
// replaced, not restored; enable bucket versioning to keep them.
func (s *S3Store) Write(ctx context.Context, artifacts []Artifact) error {
	var put []string
	for _, a := range artifacts {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(s.key(a.Name)),
			Body:        bytes.NewReader(a.Body),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			s.rollback(put)
			return fmt.Errorf("S3 PutObject %s: %w", s.Location(a.Name), err)
		}
		put = append(put, s.key(a.Name))
	}
	return nil
}

func (s *S3Store) rollback(keys []string) {
	// The run's ctx may be the reason the upload failed.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, k := range keys {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(k),
		})
		if err != nil {
			logger.Error("S3 rollback failed", "location", "s3://"+s.bucket+"/"+k, "error", err)
		}
	}
}
