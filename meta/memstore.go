package meta

import (
	"context"
	"sync"

	"github.com/mewkiz/pkg/errutil"
)

// MemStore is an in-memory Store, useful for tests and for small one-off
// conversions that don't warrant a real database connection. It is safe for
// concurrent use.
type MemStore struct {
	mu sync.RWMutex

	kv      map[string]string
	blobs   map[blobKey][]byte
	tic     map[int64]float64
	scanIDs map[int64]struct{}
}

type blobKey struct {
	scanID int64
	kind   BlobKind
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		kv:      make(map[string]string),
		blobs:   make(map[blobKey][]byte),
		tic:     make(map[int64]float64),
		scanIDs: make(map[int64]struct{}),
	}
}

func (m *MemStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.kv[key]
	return v, ok, nil
}

func (m *MemStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = value
	return nil
}

func (m *MemStore) ReadBlob(ctx context.Context, scanID int64, kind BlobKind) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[blobKey{scanID, kind}]
	if !ok {
		return nil, errutil.Newf("meta.MemStore.ReadBlob: no blob of kind %d for scan %d", kind, scanID)
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (m *MemStore) WriteBlob(ctx context.Context, scanID int64, kind BlobKind, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(blob))
	copy(cp, blob)
	m.blobs[blobKey{scanID, kind}] = cp
	m.scanIDs[scanID] = struct{}{}
	return nil
}

func (m *MemStore) SetIntensitySum(ctx context.Context, scanID int64, sum float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tic[scanID] = sum
	m.scanIDs[scanID] = struct{}{}
	return nil
}

// IntensitySum returns the recorded total ion current for a scan, mirroring
// the read side of SetIntensitySum for tests that need to assert on it.
func (m *MemStore) IntensitySum(scanID int64) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.tic[scanID]
	return v, ok
}

func (m *MemStore) ScanIDs(ctx context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.scanIDs))
	for id := range m.scanIDs {
		ids = append(ids, id)
	}
	return ids, nil
}
