package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"car-market-tracker/internal/logging"
)

const (
	lockFile = "tables.lock"

	// A lock whose file has not been touched for lockTTL belongs to a dead
	// process and is taken over.
	lockTTL           = 10 * time.Minute
	lockHeartbeatRate = time.Minute
)

// ErrLocked is returned when another process holds the tables.
var ErrLocked = errors.New("tables locked by another writer")

// Lock takes the single-writer lock on the data directory. The returned
// release func stops the heartbeat and removes the lock file.
func (s *TableStore) Lock() (release func(), err error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", s.dir, err)
	}
	path := filepath.Join(s.dir, lockFile)
	ttl := s.lockTTL
	if ttl <= 0 {
		ttl = lockTTL
	}

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			_, _ = fmt.Fprintf(f, `{"pid":%d,"time":%d}`+"\n", os.Getpid(), time.Now().Unix())
			_ = f.Close()
			return s.heartbeat(path), nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create lock %s: %w", path, err)
		}

		fi, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat lock %s: %w", path, err)
		}
		if age := time.Since(fi.ModTime()); age >= ttl {
			logging.Warnf("[Storage] removing stale lock %s (%v old)", path, age.Round(time.Second))
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to remove stale lock %s: %w", path, err)
			}
			continue
		}

		holder, _ := os.ReadFile(path)
		return nil, fmt.Errorf("%w: %s held by %s", ErrLocked, path, trimNewline(holder))
	}
}

func (s *TableStore) heartbeat(path string) func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(lockHeartbeatRate)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case t := <-ticker.C:
				if err := os.Chtimes(path, t, t); err != nil {
					logging.Warnf("[Storage] lock heartbeat failed: %v", err)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				logging.Errorf("[Storage] failed to release lock %s: %v", path, err)
			}
		})
	}
}

func trimNewline(b []byte) string {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	return string(b)
}
