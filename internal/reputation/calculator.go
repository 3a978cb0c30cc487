// Package reputation derives vote weights from user reputation records and
// adjusts the records after challenge resolutions.
//
// Weight derivation is a pure function of the current reputation state; the
// calculator only adds a short-lived cache in front of the store because a
// tally burst tends to hit the same voters repeatedly. Weights are frozen
// into votes at cast time, so the cache can never alter a past tally.
package reputation

import (
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/truthgraph/veracity/internal/model"
	"github.com/truthgraph/veracity/internal/policy"
	"github.com/truthgraph/veracity/internal/store"
)

// Calculator turns reputation records into vote weights
type Calculator struct {
	store  store.Store
	policy policy.Policy
	cache  *gocache.Cache
	group  singleflight.Group
}

// NewCalculator creates a calculator reading reputation records from s
func NewCalculator(s store.Store, p policy.Policy) *Calculator {
	return &Calculator{
		store:  s,
		policy: p,
		cache:  gocache.New(30*time.Second, time.Minute),
	}
}

// Weight returns the vote weight for a reputation record:
// composite/100 clamped to [MinVoteWeight, MaxVoteWeight].
func Weight(r model.UserReputation, p policy.Policy) float64 {
	w := r.Composite(p.SubScoreWeights) / 100
	if w < p.MinVoteWeight {
		return p.MinVoteWeight
	}
	if w > p.MaxVoteWeight {
		return p.MaxVoteWeight
	}
	return w
}

// WeightFor returns the vote weight for a user. A user with no reputation
// record gets the minimum weight rather than an error: new users must be
// able to vote immediately.
func (c *Calculator) WeightFor(userID string) (float64, error) {
	if w, found := c.cache.Get(userID); found {
		return w.(float64), nil
	}

	// Collapse concurrent lookups for the same voter into one store read.
	v, err, _ := c.group.Do(userID, func() (interface{}, error) {
		rec, err := c.store.GetReputation(userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.policy.MinVoteWeight, nil
			}
			return 0.0, err
		}
		return Weight(rec, c.policy), nil
	})
	if err != nil {
		return 0, err
	}

	w := v.(float64)
	c.cache.Set(userID, w, gocache.DefaultExpiration)
	return w, nil
}

// Invalidate drops a user's cached weight, e.g. after their record changed
func (c *Calculator) Invalidate(userID string) {
	c.cache.Delete(userID)
}
