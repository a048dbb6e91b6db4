package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgnsrekt/ttspeaker/pkg/logging"
)

// Manager coordinates the memory and disk tiers. Disk hits are promoted to
// memory, and a background routine drops expired entries.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache // nil when no disk path is configured

	config Config
	log    *logging.Logger

	cleanupStop chan struct{}
	cleanupWg   sync.WaitGroup
	closeOnce   sync.Once

	mu    sync.Mutex
	stats struct {
		hits        int64
		misses      int64
		memoryHits  int64
		diskHits    int64
		promotions  int64
		cleanupRuns int64
		lastCleanup time.Time
	}
}

// ManagerStats aggregates statistics from both tiers.
type ManagerStats struct {
	Hits       int64
	Misses     int64
	HitRate    float64
	MemoryHits int64
	DiskHits   int64
	Promotions int64

	CleanupRuns int64
	LastCleanup time.Time

	Memory Stats
	Disk   Stats

	DiskEnabled      bool
	DiskPath         string
	DiskOriginalSize int64
	DiskOldest       time.Time
}

// NewManager creates a cache manager. The disk tier is opened only when
// config.DiskPath is set.
func NewManager(config Config, log *logging.Logger) (*Manager, error) {
	if log == nil {
		log = logging.Nop()
	}
	if config.MemoryBytes <= 0 {
		config.MemoryBytes = DefaultConfig().MemoryBytes
	}

	m := &Manager{
		memory:      NewMemoryCache(config.MemoryEntries, config.MemoryBytes),
		config:      config,
		log:         log.Category("cache"),
		cleanupStop: make(chan struct{}),
	}

	if config.DiskPath != "" {
		if config.DiskBytes <= 0 {
			config.DiskBytes = DefaultConfig().DiskBytes
		}
		disk, err := NewDiskCache(config.DiskPath, config.DiskBytes, config.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create disk cache: %w", err)
		}
		m.disk = disk
	}

	if config.CleanupInterval > 0 && config.MaxAge > 0 {
		m.startCleanupRoutine()
	}
	return m, nil
}

// HasDisk reports whether the disk tier is enabled.
func (m *Manager) HasDisk() bool {
	return m.disk != nil
}

// Get looks in memory, then on disk when useDisk is set. It returns the
// tier that answered.
func (m *Manager) Get(key string, useDisk bool) ([]byte, Level, bool) {
	if data, ok := m.memory.Get(key); ok {
		m.count(func() { m.stats.memoryHits++; m.stats.hits++ })
		return data, LevelMemory, true
	}

	if useDisk && m.disk != nil {
		if data, ok := m.disk.Get(key); ok {
			m.count(func() { m.stats.diskHits++; m.stats.hits++; m.stats.promotions++ })
			// Promotion is best effort.
			_ = m.memory.Put(key, data)
			return data, LevelDisk, true
		}
	}

	m.count(func() { m.stats.misses++ })
	return nil, LevelMemory, false
}

// Put stores value in memory, and on disk when useDisk is set. A value too
// large for a tier is skipped for that tier.
func (m *Manager) Put(key string, value []byte, useDisk bool) error {
	if err := m.memory.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("memory cache: %w", err)
	}
	if !useDisk || m.disk == nil {
		return nil
	}
	if err := m.disk.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		m.log.Warn("disk cache write failed", "key", logging.Truncate(key, 16), "err", err)
		return fmt.Errorf("disk cache: %w", err)
	}
	return nil
}

// Contains reports whether any tier holds key.
func (m *Manager) Contains(key string) bool {
	return m.memory.Contains(key) || (m.disk != nil && m.disk.Contains(key))
}

// Delete removes key from both tiers.
func (m *Manager) Delete(key string) error {
	err := m.memory.Delete(key)
	if m.disk != nil {
		err = errors.Join(err, m.disk.Delete(key))
	}
	return err
}

// Clear empties both tiers.
func (m *Manager) Clear() error {
	err := m.memory.Clear()
	if m.disk != nil {
		err = errors.Join(err, m.disk.Clear())
	}
	return err
}

// Cleanup drops entries older than the configured max age.
func (m *Manager) Cleanup() int {
	m.count(func() {
		m.stats.cleanupRuns++
		m.stats.lastCleanup = time.Now()
	})
	if m.config.MaxAge <= 0 {
		return 0
	}

	removed := m.memory.Prune(m.config.MaxAge)
	if m.disk != nil {
		removed += m.disk.RemoveOlderThan(time.Now().Add(-m.config.MaxAge))
		if err := m.disk.Flush(); err != nil {
			m.log.Warn("failed to save cache index", "err", err)
		}
	}
	if removed > 0 {
		m.log.Debug("cache cleanup", "removed", removed)
	}
	return removed
}

// Stats returns aggregated statistics from both tiers.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	s := ManagerStats{
		Hits:        m.stats.hits,
		Misses:      m.stats.misses,
		MemoryHits:  m.stats.memoryHits,
		DiskHits:    m.stats.diskHits,
		Promotions:  m.stats.promotions,
		CleanupRuns: m.stats.cleanupRuns,
		LastCleanup: m.stats.lastCleanup,
	}
	m.mu.Unlock()

	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	s.Memory = m.memory.Stats()
	if m.disk != nil {
		s.DiskEnabled = true
		s.DiskPath = m.disk.Path()
		s.Disk = m.disk.Stats()
		s.DiskOriginalSize = m.disk.OriginalSize()
		s.DiskOldest = m.disk.Oldest()
	}
	return s
}

// Close stops the cleanup routine and saves the disk index.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.cleanupStop)
		m.cleanupWg.Wait()
		if m.disk != nil {
			if cerr := m.disk.Close(); cerr != nil {
				err = fmt.Errorf("failed to close disk cache: %w", cerr)
			}
		}
	})
	return err
}

func (m *Manager) count(fn func()) {
	m.mu.Lock()
	fn()
	m.mu.Unlock()
}

func (m *Manager) startCleanupRoutine() {
	ticker := time.NewTicker(m.config.CleanupInterval)
	m.cleanupWg.Add(1)

	go func() {
		defer m.cleanupWg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.Cleanup()
			case <-m.cleanupStop:
				return
			}
		}
	}()
}
