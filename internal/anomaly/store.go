package anomaly

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/repository"
)

// profileStripes is the number of lock stripes. Power of two so the
// hash maps with a mask.
const profileStripes = 64

// profileCacheTTL bounds how long a hot profile snapshot lives in cache.
const profileCacheTTL = 10 * time.Minute

// Store owns per-user profile access: serialization via striped locks,
// durable writes through the repository, and a cache layer for hot
// profiles. Callers must hold the user's lock across a load-observe-
// commit cycle so concurrent scores for one user apply in sequence.
type Store struct {
	repo   domain.Repository
	cache  domain.Cache
	logger *slog.Logger

	locks [profileStripes]sync.Mutex
}

// NewStore creates a profile store. cache may be nil.
func NewStore(repo domain.Repository, cache domain.Cache, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{repo: repo, cache: cache, logger: logger}
}

// Lock acquires the stripe lock for a user and returns the unlock
// function. Distinct users may share a stripe; the same user always
// maps to the same stripe.
func (s *Store) Lock(tenantID, userID string) func() {
	stripe := stripeFor(tenantID, userID)
	s.locks[stripe].Lock()
	return s.locks[stripe].Unlock
}

// Load returns the user's profile, preferring the cache snapshot over
// the repository. An unknown user gets a fresh empty profile.
func (s *Store) Load(ctx context.Context, tenantID, userID string) (*domain.UserProfile, error) {
	if s.cache != nil {
		profile, err := s.cache.GetProfile(ctx, tenantID, userID)
		if err != nil {
			s.logger.Warn("profile cache read failed", "user_id", userID, "error", err)
		} else if profile != nil {
			return profile, nil
		}
	}

	profile, err := s.repo.GetProfile(ctx, tenantID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NewUserProfile(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile for %s: %w", userID, err)
	}
	return profile, nil
}

// Commit persists an updated profile to the repository and refreshes
// the cache snapshot. A cache write failure is logged, not returned:
// the repository is the source of truth.
func (s *Store) Commit(ctx context.Context, tenantID string, profile *domain.UserProfile) error {
	if err := s.repo.SaveProfile(ctx, tenantID, profile); err != nil {
		return fmt.Errorf("save profile for %s: %w", profile.UserID, err)
	}

	if s.cache != nil {
		if err := s.cache.SetProfile(ctx, tenantID, profile, profileCacheTTL); err != nil {
			s.logger.Warn("profile cache write failed", "user_id", profile.UserID, "error", err)
		}
	}
	return nil
}

// BurstCounter returns a detector burst counter backed by the cache, or
// nil when no cache is configured.
func (s *Store) BurstCounter() BurstCounter {
	if s.cache == nil {
		return nil
	}
	return func(ctx context.Context, tenantID, userID string, window time.Duration) (int64, error) {
		return s.cache.IncrementCounter(ctx, tenantID, "burst:"+userID, window)
	}
}

func stripeFor(tenantID, userID string) int {
	h := fnv.New32a()
	h.Write([]byte(tenantID))
	h.Write([]byte{0})
	h.Write([]byte(userID))
	return int(h.Sum32() & (profileStripes - 1))
}
