// Package archive persists rendered HTML snapshots to blob storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/beesyst/zen-crm-bot/internal/clock/system"
	"github.com/beesyst/zen-crm-bot/internal/hash/sha256"
)

// BlobStore writes one object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Clock supplies timestamps for snapshot paths.
type Clock interface {
	Now() time.Time
}

// Config tunes snapshot object naming.
type Config struct {
	Prefix      string
	ContentType string
}

// Archiver names and uploads page snapshots.
type Archiver struct {
	store       BlobStore
	prefix      string
	contentType string
	hasher      *sha256.Hasher
	clock       Clock
	log         *zap.Logger
}

// New creates an Archiver over the given blob store.
func New(store BlobStore, cfg Config, log *zap.Logger) (*Archiver, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	contentType := cfg.ContentType
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	return &Archiver{
		store:       store,
		prefix:      strings.Trim(cfg.Prefix, "/"),
		contentType: contentType,
		hasher:      sha256.New(),
		clock:       system.New(),
		log:         log,
	}, nil
}

// Archive uploads the snapshot and returns the object URI. The object
// path is prefix/host/date/urlhash-unixnano.html so repeated snapshots
// of the same page never collide.
func (a *Archiver) Archive(ctx context.Context, pageURL string, html []byte) (string, error) {
	if len(html) == 0 {
		return "", fmt.Errorf("snapshot body is empty")
	}
	now := a.clock.Now()
	path := fmt.Sprintf("%s/%s/%s-%d.html",
		hostSegment(pageURL),
		now.Format("2006/01/02"),
		a.hasher.SumShort([]byte(pageURL), 16),
		now.UnixNano(),
	)
	if a.prefix != "" {
		path = a.prefix + "/" + path
	}
	uri, err := a.store.PutObject(ctx, path, a.contentType, bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("put snapshot: %w", err)
	}
	a.log.Debug("snapshot stored", zap.String("url", pageURL), zap.String("uri", uri))
	return uri, nil
}

func hostSegment(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
