// Package store is the content-addressed on-disk cache for audio and video
// artifacts. It guarantees at-most-once production per fingerprint: files
// are written atomically and concurrent producers for the same fingerprint
// coalesce into a single call.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	audioDirName = "audio"
	videoDirName = "video"
	tmpDirName   = "tmp"

	audioExt = ".mp3"
	videoExt = ".mp4"
)

// Producer generates the artifact bytes on a cache miss.
type Producer func(ctx context.Context) ([]byte, error)

// Store is a read-through cache rooted at a directory.
type Store struct {
	root       string
	byteBudget int64
	group      singleflight.Group
	logger     *zap.Logger
}

// Option customizes the store.
type Option func(*Store)

// WithByteBudget enables LRU eviction once a cache directory exceeds the
// given byte budget. Zero disables eviction.
func WithByteBudget(budget int64) Option {
	return func(s *Store) {
		s.byteBudget = budget
	}
}

// New creates a store rooted at dir, creating the cache layout if needed.
func New(dir string, logger *zap.Logger, opts ...Option) (*Store, error) {
	s := &Store{root: dir, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	for _, sub := range []string{audioDirName, videoDirName, tmpDirName} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache dir: %w", err)
		}
	}
	return s, nil
}

// AudioPath returns the on-disk location for an audio fingerprint.
func (s *Store) AudioPath(fingerprint string) string {
	return filepath.Join(s.root, audioDirName, fingerprint+audioExt)
}

// VideoPath returns the on-disk location for a video fingerprint.
func (s *Store) VideoPath(fingerprint string) string {
	return filepath.Join(s.root, videoDirName, fingerprint+videoExt)
}

// GetOrPutAudio returns the cached audio for the fingerprint, running
// producer on a miss. cached reports whether the artifact already existed.
func (s *Store) GetOrPutAudio(ctx context.Context, fingerprint string, producer Producer) (path string, cached bool, err error) {
	return s.getOrPut(ctx, audioDirName, fingerprint, audioExt, producer)
}

// GetOrPutVideo is GetOrPutAudio for video artifacts.
func (s *Store) GetOrPutVideo(ctx context.Context, fingerprint string, producer Producer) (path string, cached bool, err error) {
	return s.getOrPut(ctx, videoDirName, fingerprint, videoExt, producer)
}

type cacheResult struct {
	path   string
	cached bool
}

func (s *Store) getOrPut(ctx context.Context, dir, fingerprint, ext string, producer Producer) (string, bool, error) {
	final := filepath.Join(s.root, dir, fingerprint+ext)

	if s.hit(final) {
		return final, true, nil
	}

	key := dir + "/" + fingerprint
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		// A concurrent caller may have finished while we queued.
		if s.hit(final) {
			return cacheResult{path: final, cached: true}, nil
		}

		data, err := producer(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.commit(final, data); err != nil {
			return nil, err
		}

		s.logger.Info("Artifact cached",
			zap.String("fingerprint", fingerprint),
			zap.String("path", final),
			zap.Int("bytes", len(data)),
		)
		s.evict(filepath.Join(s.root, dir))
		return cacheResult{path: final, cached: false}, nil
	})
	if err != nil {
		return "", false, err
	}

	result := v.(cacheResult)
	return result.path, result.cached, nil
}

// hit checks for an existing artifact and bumps its mtime so LRU eviction
// sees the access.
func (s *Store) hit(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	now := time.Now()
	_ = os.Chtimes(path, now, now)
	return true
}

// commit writes data to a temp file and renames it into place. A partial
// write is never visible at the final path.
func (s *Store) commit(final string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Join(s.root, tmpDirName), filepath.Base(final)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to commit artifact: %w", err)
	}
	return nil
}

// evict removes least-recently-accessed files until dir fits the byte
// budget. No-op when no budget is configured.
func (s *Store) evict(dir string) {
	if s.byteBudget <= 0 {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	type fileInfo struct {
		path    string
		size    int64
		modTime time.Time
	}
	var files []fileInfo
	var total int64
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, fileInfo{
			path:    filepath.Join(dir, entry.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		total += info.Size()
	}
	if total <= s.byteBudget {
		return
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})
	for _, f := range files {
		if total <= s.byteBudget {
			break
		}
		if err := os.Remove(f.path); err != nil {
			continue
		}
		total -= f.size
		s.logger.Info("Evicted cached artifact",
			zap.String("path", f.path),
			zap.Int64("bytes", f.size),
		)
	}
}

// Sweep removes leftover temp files, e.g. after a cancelled run.
func (s *Store) Sweep() {
	tmpDir := filepath.Join(s.root, tmpDirName)
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		_ = os.Remove(filepath.Join(tmpDir, entry.Name()))
	}
}
