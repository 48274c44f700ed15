package rooms

import (
	"context"
	"time"

	"parlor/internal/models"

	"github.com/c-pro/geche"
	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultSnapshotTTL bounds how long a membership snapshot may serve reads
// without a gateway round-trip.
const DefaultSnapshotTTL = 30 * time.Minute

// Gateway is the persistence surface the tracker falls back to on a cache
// miss. Satisfied by storage.Store.
type Gateway interface {
	ListMembers(roomID string) ([]models.Membership, error)
}

// Tracker answers "who belongs to room R" with a TTL-bounded snapshot cache
// in front of the gateway. The cache is an accelerator, never the source of
// truth: snapshots are deleted (not updated) on every membership write.
type Tracker struct {
	gateway Gateway
	cache   geche.Geche[string, mapset.Set[string]]
	group   singleflight.Group
}

func NewTracker(ctx context.Context, gateway Gateway, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &Tracker{
		gateway: gateway,
		cache:   geche.NewMapTTLCache[string, mapset.Set[string]](ctx, ttl, time.Minute),
	}
}

// MembersOf returns the set of active member user IDs. Cache-first; on miss
// the gateway load is deduplicated via singleflight so a busy room does not
// stampede the store. Snapshots are immutable once built.
func (t *Tracker) MembersOf(roomID string) (mapset.Set[string], error) {
	if set, err := t.cache.Get(roomID); err == nil {
		return set, nil
	}

	v, err, _ := t.group.Do(roomID, func() (any, error) {
		members, err := t.gateway.ListMembers(roomID)
		if err != nil {
			return nil, err
		}
		set := mapset.NewSet[string]()
		for _, m := range members {
			if !m.Left {
				set.Add(m.UserID)
			}
		}
		t.cache.Set(roomID, set)
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(mapset.Set[string]), nil
}

// IsMember short-circuits through the cached snapshot when warm.
func (t *Tracker) IsMember(userID, roomID string) (bool, error) {
	set, err := t.MembersOf(roomID)
	if err != nil {
		return false, err
	}
	return set.Contains(userID), nil
}

// Invalidate drops the snapshot. Must run synchronously after every
// membership write, before the write's result is returned to the caller.
func (t *Tracker) Invalidate(roomID string) {
	_ = t.cache.Del(roomID)
}
