package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/truthgraph/veracity/internal/model"
)

// scoreEpsilon is the convergence guard: score moves smaller than this do
// not count as changes and are not propagated further.
const scoreEpsilon = 1e-9

// ConfidenceChange records one claim's committed score move
type ConfidenceChange struct {
	ClaimID  string  `json:"claim_id"`
	OldScore float64 `json:"old_score"`
	NewScore float64 `json:"new_score"`
}

// Recompute re-derives confidence for claimID and every claim reachable
// from it through incoming support edges (its dependents), under the
// weakest-link rule:
//
//	confidence = min(evidenceScore, min over outgoing edges of target.confidence * edge.weight)
//
// The traversal is breadth-first with a visited set per pass, so it
// terminates on cycles; passes repeat from the previous pass's changed set
// until a fixed point. All new scores are staged and committed only after
// the whole recomputation converges: a failed pass leaves prior scores
// intact. Returns every claim whose confidence changed.
func (e *Engine) Recompute(ctx context.Context, claimID string, reason model.HistoryEventType) ([]ConfidenceChange, error) {
	e.propMu.Lock()
	defer e.propMu.Unlock()

	start := time.Now()

	p := &propagationPass{
		engine: e,
		staged: make(map[string]float64),
		old:    make(map[string]float64),
		claims: make(map[string]model.Claim),
	}
	if err := p.run(ctx, claimID); err != nil {
		return nil, err
	}
	changes, err := p.commit(reason)
	if err != nil {
		return nil, err
	}

	propagationPasses.Inc()
	propagationChanged.Observe(float64(len(changes)))
	propagationDuration.Observe(time.Since(start).Seconds())
	e.logger.Debug("propagation converged",
		zap.String("root", claimID),
		zap.Int("changed", len(changes)),
		zap.Int("visited", p.budgetUsed))
	return changes, nil
}

// propagationPass holds the state of one recomputation invocation. The
// staged map doubles as the view of not-yet-committed scores, so later
// sweeps see earlier staged values without touching the store.
type propagationPass struct {
	engine     *Engine
	staged     map[string]float64     // claim ID -> pending new confidence
	old        map[string]float64     // claim ID -> confidence before this invocation
	claims     map[string]model.Claim // memoized store reads
	budgetUsed int
}

func (p *propagationPass) run(ctx context.Context, rootID string) error {
	frontier := []string{rootID}

	for sweep := 0; len(frontier) > 0; sweep++ {
		// Every sweep visits at least one claim, so the visit budget bounds
		// the sweep count too; tripping this limit without exhausting the
		// budget means the convergence guard itself is broken.
		if sweep > p.engine.policy.PropagationBudget {
			return fmt.Errorf("root %s after %d sweeps: %w", rootID, sweep, ErrPropagationCycleUnresolved)
		}
		// Cancellation is cooperative between sweeps only.
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("propagation cancelled: %w", err)
		}

		changed, err := p.sweep(frontier)
		if err != nil {
			return err
		}

		// A claim whose support changed this sweep must be recomputed next
		// sweep, even if it was already visited this one: on a cycle the
		// visited set cuts the walk short before the change loops around.
		next := make(map[string]struct{})
		for _, id := range changed {
			incoming, err := p.engine.store.EdgesTo(id)
			if err != nil {
				return fmt.Errorf("edges to %s: %w", id, err)
			}
			for _, edge := range incoming {
				next[edge.SourceID] = struct{}{}
			}
		}
		frontier = frontier[:0]
		for id := range next {
			frontier = append(frontier, id)
		}
		sort.Strings(frontier)
	}
	return nil
}

// sweep runs one breadth-first pass seeded by seeds, returning the claims
// whose staged value changed during it
func (p *propagationPass) sweep(seeds []string) ([]string, error) {
	visited := make(map[string]struct{})
	queue := append([]string(nil), seeds...)
	var changed []string

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}

		p.budgetUsed++
		if p.budgetUsed > p.engine.policy.PropagationBudget {
			return nil, fmt.Errorf("visited %d claims: %w", p.budgetUsed, ErrPropagationBudgetExceeded)
		}

		claim, err := p.claim(id)
		if err != nil {
			return nil, err
		}
		if claim.Verified() {
			// Verified claims never move; their dependents have nothing new
			// to see through them.
			continue
		}

		newScore, err := p.weakestLink(claim)
		if err != nil {
			return nil, err
		}
		if math.Abs(newScore-p.confidence(id)) <= scoreEpsilon {
			continue
		}
		if _, tracked := p.old[id]; !tracked {
			p.old[id] = p.confidence(id)
		}
		p.staged[id] = newScore
		changed = append(changed, id)

		// Enqueue the claims that depend on this one.
		incoming, err := p.engine.store.EdgesTo(id)
		if err != nil {
			return nil, fmt.Errorf("edges to %s: %w", id, err)
		}
		for _, edge := range incoming {
			if _, seen := visited[edge.SourceID]; !seen {
				queue = append(queue, edge.SourceID)
			}
		}
	}
	return changed, nil
}

// weakestLink computes min(evidence, min(target confidence * weight)) using
// staged values where present
func (p *propagationPass) weakestLink(claim model.Claim) (float64, error) {
	score := claim.EvidenceScore
	outgoing, err := p.engine.store.EdgesFrom(claim.ID)
	if err != nil {
		return 0, fmt.Errorf("edges from %s: %w", claim.ID, err)
	}
	for _, edge := range outgoing {
		target, err := p.claim(edge.TargetID)
		if err != nil {
			return 0, err
		}
		bound := p.confidenceOf(target) * edge.Weight
		if bound < score {
			score = bound
		}
	}
	return score, nil
}

// confidence returns the current working score for a claim ID
func (p *propagationPass) confidence(id string) float64 {
	if v, ok := p.staged[id]; ok {
		return v
	}
	c, err := p.claim(id)
	if err != nil {
		return 0
	}
	return c.Confidence
}

func (p *propagationPass) confidenceOf(c model.Claim) float64 {
	if v, ok := p.staged[c.ID]; ok {
		return v
	}
	return c.Confidence
}

// claim memoizes store reads for the duration of the invocation
func (p *propagationPass) claim(id string) (model.Claim, error) {
	if c, ok := p.claims[id]; ok {
		return c, nil
	}
	c, err := p.engine.store.GetClaim(id)
	if err != nil {
		return model.Claim{}, err
	}
	p.claims[id] = c
	return c, nil
}

// commit writes every staged score, appends the audit entries, and
// publishes ConfidenceChanged events. Each claim's write is atomic; the
// commit runs under the propagation lock so no other recomputation
// interleaves.
func (p *propagationPass) commit(reason model.HistoryEventType) ([]ConfidenceChange, error) {
	ids := make([]string, 0, len(p.staged))
	for id := range p.staged {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	e := p.engine
	changes := make([]ConfidenceChange, 0, len(ids))
	for _, id := range ids {
		newScore := p.staged[id]
		oldScore := p.old[id]
		if math.Abs(newScore-oldScore) <= scoreEpsilon {
			continue
		}
		err := e.store.UpdateClaim(id, func(c *model.Claim) error {
			c.Confidence = newScore
			c.UpdatedAt = time.Now().UTC()
			return nil
		})
		if err != nil {
			return changes, fmt.Errorf("commit confidence for %s: %w", id, err)
		}
		if err := e.appendHistory(id, newScore, newScore-oldScore, reason, string(reason)); err != nil {
			return changes, err
		}
		e.bus.Publish(model.ConfidenceChanged{
			ClaimID:  id,
			OldScore: oldScore,
			NewScore: newScore,
			Reason:   reason,
			At:       time.Now().UTC(),
		})
		changes = append(changes, ConfidenceChange{ClaimID: id, OldScore: oldScore, NewScore: newScore})
	}
	return changes, nil
}
