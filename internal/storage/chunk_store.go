package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	maxmeet_errors "github.com/seanyjeong/max-meeting-sub000/pkg/errors"
)

// ChunkStore is an append-only writer for one-file-per-recording uploads.
// Every append must start exactly at the current end of file; the on-disk
// size is the single source of truth for resume offsets.
type ChunkStore struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewChunkStore() *ChunkStore {
	return &ChunkStore{locks: make(map[string]*sync.Mutex)}
}

func (s *ChunkStore) pathLock(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

func (s *ChunkStore) releaseLock(path string) {
	s.mu.Lock()
	delete(s.locks, path)
	s.mu.Unlock()
}

// Size returns the current byte offset of the file, 0 when it does not
// exist yet. Side-effect free; this backs the resume status query.
func (s *ChunkStore) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

// Append writes data at offset and returns the new size. The offset must
// equal the current size; anything else (gap, duplicate, replay) returns
// ErrUploadConflict so the client re-queries status and resumes.
func (s *ChunkStore) Append(path string, offset int64, data []byte) (int64, error) {
	l := s.pathLock(path)
	l.Lock()
	defer l.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create upload directory: %w", err)
	}

	size, err := s.Size(path)
	if err != nil {
		return 0, err
	}
	if offset != size {
		return size, maxmeet_errors.ErrUploadConflict
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return size, err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return size, err
	}
	if err := f.Sync(); err != nil {
		return size, err
	}
	return size + int64(len(data)), nil
}

// Checksum streams the whole file through sha256 and returns the hex
// digest. Used once, on the chunk that completes the transfer.
func (s *ChunkStore) Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Remove deletes the file. Missing files are not an error; delete must be
// idempotent.
func (s *ChunkStore) Remove(path string) error {
	defer s.releaseLock(path)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
