package dzc

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"deepzoom/pyramid"
)

// Store persists canvas tiles. Load returns an error wrapping
// pyramid.ErrNotFound for a tile that was never saved.
type Store interface {
	Load(key CanvasKey) (image.Image, error)
	Save(key CanvasKey, img image.Image) error
}

// Codec reads and writes image files.
type Codec interface {
	Load(path string) (image.Image, error)
	Save(path string, img image.Image, format string) error
}

// FileStore keeps canvas tiles as <dir>/<level>/<col>_<row>.<format>.
type FileStore struct {
	dir    string
	format string
	codec  Codec
}

func NewFileStore(dir, format string, codec Codec) *FileStore {
	return &FileStore{
		dir:    dir,
		format: format,
		codec:  codec,
	}
}

// Path is where the canvas tile for key lives.
func (s *FileStore) Path(key CanvasKey) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d", key.Level), fmt.Sprintf("%d_%d.%s", key.Col, key.Row, s.format))
}

func (s *FileStore) Load(key CanvasKey) (image.Image, error) {
	return s.codec.Load(s.Path(key))
}

func (s *FileStore) Save(key CanvasKey, img image.Image) error {
	path := s.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%v: %w", err, pyramid.ErrIO)
	}
	return s.codec.Save(path, img, s.format)
}

// MemStore keeps canvas tiles in memory.
type MemStore struct {
	mu    sync.Mutex
	tiles map[CanvasKey]image.Image
}

func NewMemStore() *MemStore {
	return &MemStore{
		tiles: make(map[CanvasKey]image.Image),
	}
}

func (s *MemStore) Load(key CanvasKey) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, ok := s.tiles[key]
	if !ok {
		return nil, fmt.Errorf("canvas %s: %w", key, pyramid.ErrNotFound)
	}
	return img, nil
}

func (s *MemStore) Save(key CanvasKey, img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tiles[key] = img
	return nil
}

// Keys lists the stored canvas tiles.
func (s *MemStore) Keys() []CanvasKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]CanvasKey, 0, len(s.tiles))
	for k := range s.tiles {
		keys = append(keys, k)
	}
	return keys
}

// keyLocks hands out one mutex per canvas tile so a read-modify-write of a
// tile is never interleaved with another on the same tile.
type keyLocks struct {
	mu    sync.Mutex
	locks map[CanvasKey]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{
		locks: make(map[CanvasKey]*sync.Mutex),
	}
}

func (k *keyLocks) lock(key CanvasKey) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = new(sync.Mutex)
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
