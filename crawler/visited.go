package crawler

import (
	"errors"
	"fmt"
	"os"
	"sync"

	bloom "github.com/bits-and-blooms/bloom/v3"
	"github.com/edsrzf/mmap-go"
)

// DefaultVisitedCapacity sizes the bloom filter when no estimate is given.
const DefaultVisitedCapacity = 10000

// VisitedTracker remembers which URLs a run has already handled. A bloom
// filter mirrored into an mmap'd temp file answers "definitely new" without
// touching the exact set; positives are confirmed against the exact set so
// false positives never drop a URL.
type VisitedTracker struct {
	mu        sync.Mutex
	filter    *bloom.BloomFilter
	exact     map[string]struct{}
	file      *os.File
	mmap      mmap.MMap
	tmpPath   string
	pending   uint64 // additions since the last flush
	syncEvery uint64
	lastErr   error
}

// NewVisitedTracker creates a tracker sized for about capacity URLs at a
// 0.1% false positive rate. capacity <= 0 uses DefaultVisitedCapacity.
func NewVisitedTracker(capacity int) (*VisitedTracker, error) {
	if capacity <= 0 {
		capacity = DefaultVisitedCapacity
	}
	filter := bloom.NewWithEstimates(uint(capacity), 0.001)

	data, err := filter.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal bloom filter: %w", err)
	}

	tmpFile, err := os.CreateTemp("", "refcrawl-visited-*.bloom")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	cleanup := func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}

	if err := tmpFile.Truncate(int64(len(data))); err != nil {
		cleanup()
		return nil, fmt.Errorf("truncate temp file: %w", err)
	}

	mapped, err := mmap.MapRegion(tmpFile, len(data), mmap.RDWR, 0, 0)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("mmap temp file: %w", err)
	}
	copy(mapped, data)

	return &VisitedTracker{
		filter:    filter,
		exact:     make(map[string]struct{}),
		file:      tmpFile,
		mmap:      mapped,
		tmpPath:   tmpPath,
		syncEvery: 256,
	}, nil
}

// VisitIfNew marks rawURL as visited and reports whether it was new.
func (v *VisitedTracker) VisitIfNew(rawURL string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.containsLocked(rawURL) {
		return false
	}
	v.addLocked(rawURL)
	return true
}

// IsVisited reports whether rawURL has been marked.
func (v *VisitedTracker) IsVisited(rawURL string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.containsLocked(rawURL)
}

// Len returns the number of distinct URLs marked.
func (v *VisitedTracker) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.exact)
}

func (v *VisitedTracker) containsLocked(rawURL string) bool {
	if !v.filter.TestString(rawURL) {
		return false
	}
	_, ok := v.exact[rawURL]
	return ok
}

func (v *VisitedTracker) addLocked(rawURL string) {
	v.filter.AddString(rawURL)
	v.exact[rawURL] = struct{}{}
	v.pending++
	if v.pending >= v.syncEvery {
		if err := v.syncLocked(); err != nil {
			v.lastErr = err
		}
	}
}

// syncLocked mirrors the filter into the mapped file. Must be called with mu held.
func (v *VisitedTracker) syncLocked() error {
	if v.mmap == nil {
		return nil
	}
	data, err := v.filter.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal bloom filter: %w", err)
	}
	if len(data) > len(v.mmap) {
		return fmt.Errorf("filter data (%d) exceeds mmap size (%d)", len(data), len(v.mmap))
	}
	copy(v.mmap, data)
	if err := v.mmap.Flush(); err != nil {
		return fmt.Errorf("flush mmap: %w", err)
	}
	v.pending = 0
	return nil
}

// LastError returns the last error from a periodic flush.
func (v *VisitedTracker) LastError() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

// Close flushes pending data and removes the backing file.
func (v *VisitedTracker) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	var errs []error
	if v.lastErr != nil {
		errs = append(errs, v.lastErr)
	}

	if v.mmap != nil {
		if v.pending > 0 {
			if err := v.syncLocked(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := v.mmap.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("unmap: %w", err))
		}
		v.mmap = nil
	}

	if v.file != nil {
		if err := v.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close file: %w", err))
		}
		v.file = nil
	}

	if v.tmpPath != "" {
		if err := os.Remove(v.tmpPath); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove temp file: %w", err))
		}
		v.tmpPath = ""
	}

	if len(errs) > 0 {
		return fmt.Errorf("close visited tracker: %w", errors.Join(errs...))
	}
	return nil
}
