package storage

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Location is a parsed source or artifact location: a local path or an
// s3://bucket/key URL.
type Location struct {
	Bucket string // empty for local paths
	Key    string
	Path   string
}

// IsS3 reports whether the location points into a bucket.
func (l Location) IsS3() bool { return l.Bucket != "" }

// Ext returns the lower-cased file extension including the dot.
func (l Location) Ext() string {
	name := l.Path
	if l.IsS3() {
		name = l.Key
	}
	return strings.ToLower(path.Ext(name))
}

func (l Location) String() string {
	if l.IsS3() {
		return "s3://" + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// ParseLocation accepts "s3://bucket/key" or a filesystem path.
func ParseLocation(s string) (Location, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Location{}, fmt.Errorf("empty location")
	}
	if !strings.HasPrefix(strings.ToLower(s), "s3://") {
		return Location{Path: s}, nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return Location{}, fmt.Errorf("parse %q: %w", s, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return Location{}, fmt.Errorf("s3 location %q needs a bucket and a key", s)
	}
	return Location{Bucket: u.Host, Key: key}, nil
}
