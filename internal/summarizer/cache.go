package summarizer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Cache is a content-addressed store of previously computed summaries.
//
// Layout: one pair of files per content digest. "<digest>.txt" holds the
// summary text; a zero-byte "<digest>.success" marker is present iff the
// summarization succeeded. Absence of the marker with presence of the text
// file signals a cached failure. A successful entry is trusted permanently:
// the digest is a pure function of the content, so no TTL or invalidation is
// needed as long as the content is unchanged.
type Cache struct {
	directory string
}

// NewCache creates the cache directory if needed and returns the store.
func NewCache(directory string) (*Cache, error) {
	if mkdirError := os.MkdirAll(directory, 0o755); mkdirError != nil {
		return nil, fmt.Errorf("create cache directory %s: %w", directory, mkdirError)
	}
	return &Cache{directory: directory}, nil
}

// ContentDigest returns the hex SHA-256 digest of content.
func ContentDigest(content string) string {
	digest := sha256.Sum256([]byte(content))
	return hex.EncodeToString(digest[:])
}

// Lookup returns the cached summary for a digest. The found flag reports
// whether any entry exists; success reports whether it was marked successful.
func (cache *Cache) Lookup(digest string) (summary string, success bool, found bool) {
	summaryBytes, readError := os.ReadFile(cache.summaryPath(digest))
	if readError != nil {
		return "", false, false
	}
	_, markerError := os.Stat(cache.markerPath(digest))
	return string(summaryBytes), markerError == nil, true
}

// Store persists a summary for a digest. The text file is written before the
// success marker, so a crash between the two writes reads back as a cached
// failure, never as a false success.
func (cache *Cache) Store(digest string, summary string, success bool) error {
	if writeError := os.WriteFile(cache.summaryPath(digest), []byte(summary), 0o644); writeError != nil {
		return fmt.Errorf("write cache entry %s: %w", digest, writeError)
	}
	if !success {
		return nil
	}
	if markerError := os.WriteFile(cache.markerPath(digest), nil, 0o644); markerError != nil {
		return fmt.Errorf("write cache marker %s: %w", digest, markerError)
	}
	return nil
}

func (cache *Cache) summaryPath(digest string) string {
	return filepath.Join(cache.directory, digest+".txt")
}

func (cache *Cache) markerPath(digest string) string {
	return filepath.Join(cache.directory, digest+".success")
}
