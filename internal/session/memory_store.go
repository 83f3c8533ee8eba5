package session

import (
	"context"
	"sync"
	"time"

	"github.com/marketpulse/listing-insights/internal/models"
)

// MemoryStore is an in-memory Store for tests and degraded boot without
// Redis.
type MemoryStore struct {
	mu       sync.Mutex
	seenDay  map[string]map[string]bool // listing:day -> visitor -> seen
	seenEver map[string]map[string]bool // listing -> visitor -> seen
	sessions map[string]*models.VisitorSession
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seenDay:  make(map[string]map[string]bool),
		seenEver: make(map[string]map[string]bool),
		sessions: make(map[string]*models.VisitorSession),
	}
}

func (s *MemoryStore) Classify(ctx context.Context, listingID, visitorID string, now time.Time) (models.Novelty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dayKey := listingID + ":" + now.UTC().Format("2006-01-02")
	if s.seenDay[dayKey] == nil {
		s.seenDay[dayKey] = make(map[string]bool)
	}
	if s.seenEver[listingID] == nil {
		s.seenEver[listingID] = make(map[string]bool)
	}

	if s.seenDay[dayKey][visitorID] {
		return models.NoveltyRepeat, nil
	}
	s.seenDay[dayKey][visitorID] = true

	if s.seenEver[listingID][visitorID] {
		return models.NoveltyReturning, nil
	}
	s.seenEver[listingID][visitorID] = true
	return models.NoveltyUnique, nil
}

func (s *MemoryStore) Latest(ctx context.Context, listingID, visitorID string) (*models.VisitorSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[listingID+":"+visitorID]
	if !ok {
		return nil, nil
	}
	cp := *sess
	cp.Actions = append([]models.SessionAction(nil), sess.Actions...)
	return &cp, nil
}

func (s *MemoryStore) Save(ctx context.Context, sess *models.VisitorSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sess
	cp.Actions = append([]models.SessionAction(nil), sess.Actions...)
	s.sessions[sess.ListingID+":"+sess.VisitorID] = &cp
	return nil
}
