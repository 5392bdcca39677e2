package similarity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Ramsey-B/matcher/pkg/models"
)

// EdgeStore caches the ranked edges of each subject. It holds derived data only.
type EdgeStore interface {
	// Replace swaps the whole edge list of a subject.
	Replace(ctx context.Context, subjectID int64, edges []models.SimilarityEdge) error
	// Get returns the edges of a subject, best first. found is false when the subject was
	// never computed or its entry expired.
	Get(ctx context.Context, subjectID int64) (edges []models.SimilarityEdge, found bool, err error)
	Delete(ctx context.Context, subjectIDs ...int64) error
}

// SortEdges orders edges by descending score, then ascending candidate id.
func SortEdges(edges []models.SimilarityEdge) {
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Score != edges[j].Score {
			return edges[i].Score > edges[j].Score
		}
		return edges[i].CandidateID < edges[j].CandidateID
	})
}

type memoryEntry struct {
	edges     []models.SimilarityEdge
	expiresAt time.Time
}

// MemoryStore keeps edges in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[int64]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an in-memory edge store. A zero ttl keeps entries forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: map[int64]memoryEntry{},
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStore) Replace(_ context.Context, subjectID int64, edges []models.SimilarityEdge) error {
	copied := append([]models.SimilarityEdge(nil), edges...)
	SortEdges(copied)

	entry := memoryEntry{edges: copied}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[subjectID] = entry
	return nil
}

func (m *MemoryStore) Get(_ context.Context, subjectID int64) ([]models.SimilarityEdge, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[subjectID]
	if !ok || (!entry.expiresAt.IsZero() && m.now().After(entry.expiresAt)) {
		return nil, false, nil
	}
	return append([]models.SimilarityEdge(nil), entry.edges...), true, nil
}

func (m *MemoryStore) Delete(_ context.Context, subjectIDs ...int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range subjectIDs {
		delete(m.entries, id)
	}
	return nil
}
