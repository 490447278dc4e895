// Package blobstore stores uploaded document bytes in an object store and
// hands out time-limited signed URLs for reading them back.
package blobstore

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrObjectNotFound   = errors.New("object not found")
	ErrPathNotDerivable = errors.New("storage path cannot be derived from url")
)

// Store is implemented by the S3 backend and the in-memory backend.
type Store interface {
	Put(ctx context.Context, objectPath string, data []byte, contentType string) error
	Remove(ctx context.Context, objectPath string) error
	SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
	PublicURL(objectPath string) string
}

// ObjectPath returns a fresh, collision-free path for an upload:
// <tenant>/<chart id or "unassigned">/<random uuid><ext>.
func ObjectPath(tenantID uuid.UUID, chartID *uuid.UUID, fileName string) string {
	folder := "unassigned"
	if chartID != nil {
		folder = chartID.String()
	}
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(fileName, "\\", "/"))))
	if len(ext) > 16 || strings.ContainsAny(ext, " ?#%") {
		ext = ""
	}
	return tenantID.String() + "/" + folder + "/" + uuid.NewString() + ext
}

// PathFromPublicURL strips the public prefix from a stored URL, returning the
// object path. Query strings and fragments are ignored. The prefix only
// matches on a path boundary.
func PathFromPublicURL(prefix, rawURL string) (string, error) {
	if prefix == "" {
		return "", ErrPathNotDerivable
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if !strings.HasPrefix(rawURL, prefix) {
		return "", ErrPathNotDerivable
	}
	rest := strings.TrimPrefix(rawURL, prefix)
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	p, err := url.PathUnescape(strings.TrimLeft(rest, "/"))
	if err != nil || p == "" || strings.Contains(p, "..") {
		return "", ErrPathNotDerivable
	}
	return p, nil
}

func joinURL(prefix, objectPath string) string {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + objectPath
}
