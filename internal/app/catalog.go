package service

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// AudioRoute is the URL prefix audio tokens are served under.
const AudioRoute = "/audio/"

// audioNamespace scopes catalog tokens so they are stable across restarts
// for the same file path.
var audioNamespace = uuid.MustParse("5f0f5d4e-6c1b-4c39-9a5e-6b1f3d9c2a71")

// Catalog maps opaque tokens to local audio files so URLs never carry
// filesystem paths.
type Catalog struct {
	mu     sync.RWMutex
	byTok  map[string]string
	byPath map[string]string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byTok: map[string]string{}, byPath: map[string]string{}}
}

// Register adds a local path and returns its token. Remote URLs are not
// catalogued and return an empty token.
func (c *Catalog) Register(path string) string {
	if isRemote(path) {
		return ""
	}
	path = filepath.Clean(path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if tok, ok := c.byPath[path]; ok {
		return tok
	}
	tok := uuid.NewSHA1(audioNamespace, []byte(path)).String()
	c.byTok[tok] = path
	c.byPath[path] = tok
	return tok
}

// URL returns the address the browser loads path from.
func (c *Catalog) URL(path string) string {
	if isRemote(path) {
		return path
	}
	return AudioRoute + c.Register(path)
}

// Lookup resolves a token.
func (c *Catalog) Lookup(token string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byTok[token]
	return p, ok
}

// Len returns the number of catalogued files.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byTok)
}

func isRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}
