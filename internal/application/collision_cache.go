package application

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/example/seasonal-allocation/internal/scheduler"
)

// collisionCache keeps recent collision answers per reservation unit so an
// operator dragging a candidate time does not hit the store on every move.
//
// Each unit carries a generation that every write to the unit bumps. Callers
// read the generation before loading reservations and hand it back to Store;
// an answer computed against an older generation is dropped.
type collisionCache struct {
	mu         sync.Mutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	units      map[string]*unitAnswers
	size       int
}

type unitAnswers struct {
	generation uint64
	answers    map[string]cachedAnswer
}

type cachedAnswer struct {
	collisions []scheduler.Collision
	expiresAt  time.Time
}

func newCollisionCache(ttl time.Duration, maxEntries int, now func() time.Time) *collisionCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &collisionCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		units:      make(map[string]*unitAnswers),
	}
}

// Lookup returns a cached answer for the query and the unit generation to
// pass to Store when the answer has to be computed.
func (c *collisionCache) Lookup(q CollisionQuery) ([]scheduler.Collision, uint64, bool) {
	if c == nil {
		return nil, 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	unit, ok := c.units[q.ReservationUnitID]
	if !ok {
		return nil, 0, false
	}
	key := collisionCacheKey(q)
	answer, ok := unit.answers[key]
	if !ok {
		return nil, unit.generation, false
	}
	if c.now().After(answer.expiresAt) {
		delete(unit.answers, key)
		c.size--
		return nil, unit.generation, false
	}
	return cloneCollisions(answer.collisions), unit.generation, true
}

// Store records an answer computed at generation. It reports false when the
// unit was written to since then.
func (c *collisionCache) Store(q CollisionQuery, generation uint64, collisions []scheduler.Collision) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	unit := c.unitLocked(q.ReservationUnitID)
	if unit.generation != generation {
		return false
	}

	key := collisionCacheKey(q)
	if _, exists := unit.answers[key]; !exists {
		if c.size >= c.maxEntries {
			c.dropExpiredLocked()
		}
		if c.size >= c.maxEntries {
			c.evictSoonestLocked()
		}
		c.size++
	}
	unit.answers[key] = cachedAnswer{
		collisions: cloneCollisions(collisions),
		expiresAt:  c.now().Add(c.ttl),
	}
	return true
}

// Invalidate forgets the unit's answers and moves it to a new generation.
func (c *collisionCache) Invalidate(unitID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	unit := c.unitLocked(unitID)
	unit.generation++
	c.size -= len(unit.answers)
	clear(unit.answers)
}

// unitLocked returns the unit's bucket. Buckets are never removed, so a
// generation is never reset.
func (c *collisionCache) unitLocked(unitID string) *unitAnswers {
	unit, ok := c.units[unitID]
	if !ok {
		unit = &unitAnswers{answers: make(map[string]cachedAnswer)}
		c.units[unitID] = unit
	}
	return unit
}

func (c *collisionCache) dropExpiredLocked() {
	now := c.now()
	for _, unit := range c.units {
		for key, answer := range unit.answers {
			if now.After(answer.expiresAt) {
				delete(unit.answers, key)
				c.size--
			}
		}
	}
}

func (c *collisionCache) evictSoonestLocked() {
	var (
		victim     *unitAnswers
		victimKey  string
		victimTime time.Time
	)
	for _, unit := range c.units {
		for key, answer := range unit.answers {
			if victim == nil || answer.expiresAt.Before(victimTime) {
				victim, victimKey, victimTime = unit, key, answer.expiresAt
			}
		}
	}
	if victim != nil {
		delete(victim.answers, victimKey)
		c.size--
	}
}

func cloneCollisions(collisions []scheduler.Collision) []scheduler.Collision {
	if len(collisions) == 0 {
		return nil
	}
	out := make([]scheduler.Collision, len(collisions))
	copy(out, collisions)
	return out
}

func collisionCacheKey(q CollisionQuery) string {
	var b strings.Builder
	b.WriteString(q.Begin.UTC().Format(time.RFC3339Nano))
	b.WriteString("|")
	b.WriteString(q.End.UTC().Format(time.RFC3339Nano))
	b.WriteString("|")
	b.WriteString(strconv.FormatInt(int64(q.BufferBefore), 10))
	b.WriteString("|")
	b.WriteString(strconv.FormatInt(int64(q.BufferAfter), 10))
	b.WriteString("|")
	b.WriteString(q.ExcludeID)
	return b.String()
}
