package store

import (
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/truthgraph/veracity/internal/model"
)

// Key layout:
//
//	claim/<id>              Claim
//	edge/<id>               SupportEdge
//	edgesrc/<source>/<id>   index entry (empty value)
//	edgetgt/<target>/<id>   index entry (empty value)
//	chal/<id>               Challenge (votes embedded)
//	rep/<user>              UserReputation
//	hist/<claim>/<nanos>    VeracityHistoryEntry, append-only
const (
	prefixClaim   = "claim/"
	prefixEdge    = "edge/"
	prefixEdgeSrc = "edgesrc/"
	prefixEdgeTgt = "edgetgt/"
	prefixChal    = "chal/"
	prefixRep     = "rep/"
	prefixHist    = "hist/"
)

// Badger is a durable store backed by an embedded BadgerDB instance.
// Update* methods run inside a Badger transaction, retried on conflict, so
// per-key updates are serializable without extra locking.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a Badger-backed store at path. An empty
// path opens an in-memory instance, which is useful in tests.
func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return &Badger{db: db}, nil
}

// Close releases the underlying database
func (b *Badger) Close() error { return b.db.Close() }

func (b *Badger) get(key string, out interface{}) error {
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return err
}

func (b *Badger) put(key string, v interface{}, extraKeys ...string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return b.update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), data); err != nil {
			return err
		}
		for _, k := range extraKeys {
			if err := txn.Set([]byte(k), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// update wraps db.Update with a bounded retry on transaction conflicts
func (b *Badger) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < 16; attempt++ {
		err = b.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("badger update: %w", err)
}

// updateRecord reads a record, applies fn, and writes it back in one
// transaction. fn returning an error aborts with no write. missing
// controls behavior when the key is absent: a non-nil fallback is used as
// the starting value instead of failing with ErrNotFound.
func (b *Badger) updateRecord(key string, out interface{}, missing func() bool, fn func() error) error {
	return b.update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			if missing == nil || !missing() {
				return fmt.Errorf("%s: %w", key, ErrNotFound)
			}
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, out)
			}); err != nil {
				return err
			}
		}
		if err := fn(); err != nil {
			return err
		}
		data, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		return txn.Set([]byte(key), data)
	})
}

func (b *Badger) listByIndex(prefix string) ([]string, error) {
	var ids []string
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, key[len(prefix):])
		}
		return nil
	})
	return ids, err
}

// GetClaim returns the claim with the given ID
func (b *Badger) GetClaim(id string) (model.Claim, error) {
	var c model.Claim
	err := b.get(prefixClaim+id, &c)
	return c, err
}

// PutClaim stores or overwrites a claim
func (b *Badger) PutClaim(c model.Claim) error {
	return b.put(prefixClaim+c.ID, c)
}

// UpdateClaim mutates a claim inside one transaction
func (b *Badger) UpdateClaim(id string, fn func(*model.Claim) error) error {
	var c model.Claim
	return b.updateRecord(prefixClaim+id, &c, nil, func() error { return fn(&c) })
}

// GetEdge returns the support edge with the given ID
func (b *Badger) GetEdge(id string) (model.SupportEdge, error) {
	var e model.SupportEdge
	err := b.get(prefixEdge+id, &e)
	return e, err
}

// PutEdge stores a support edge along with its source and target index keys
func (b *Badger) PutEdge(e model.SupportEdge) error {
	return b.put(prefixEdge+e.ID, e,
		prefixEdgeSrc+e.SourceID+"/"+e.ID,
		prefixEdgeTgt+e.TargetID+"/"+e.ID,
	)
}

// UpdateEdge mutates an edge inside one transaction. Source and target are
// fixed at creation; only the weight may change.
func (b *Badger) UpdateEdge(id string, fn func(*model.SupportEdge) error) error {
	var e model.SupportEdge
	return b.updateRecord(prefixEdge+id, &e, nil, func() error {
		src, tgt := e.SourceID, e.TargetID
		if err := fn(&e); err != nil {
			return err
		}
		e.SourceID, e.TargetID = src, tgt
		return nil
	})
}

// EdgesFrom lists the outgoing support edges of a claim
func (b *Badger) EdgesFrom(sourceID string) ([]model.SupportEdge, error) {
	return b.edgeList(prefixEdgeSrc + sourceID + "/")
}

// EdgesTo lists the incoming support edges of a claim
func (b *Badger) EdgesTo(targetID string) ([]model.SupportEdge, error) {
	return b.edgeList(prefixEdgeTgt + targetID + "/")
}

func (b *Badger) edgeList(indexPrefix string) ([]model.SupportEdge, error) {
	ids, err := b.listByIndex(indexPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]model.SupportEdge, 0, len(ids))
	for _, id := range ids {
		e, err := b.GetEdge(id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// GetChallenge returns the challenge with the given ID
func (b *Badger) GetChallenge(id string) (model.Challenge, error) {
	var ch model.Challenge
	err := b.get(prefixChal+id, &ch)
	return ch, err
}

// PutChallenge stores or overwrites a challenge
func (b *Badger) PutChallenge(ch model.Challenge) error {
	return b.put(prefixChal+ch.ID, ch)
}

// UpdateChallenge mutates a challenge inside one transaction. This is the
// atomicity boundary for vote upserts and status transitions.
func (b *Badger) UpdateChallenge(id string, fn func(*model.Challenge) error) error {
	var ch model.Challenge
	return b.updateRecord(prefixChal+id, &ch, nil, func() error { return fn(&ch) })
}

// GetReputation returns the reputation record for a user
func (b *Badger) GetReputation(userID string) (model.UserReputation, error) {
	var r model.UserReputation
	err := b.get(prefixRep+userID, &r)
	return r, err
}

// PutReputation stores or overwrites a reputation record
func (b *Badger) PutReputation(r model.UserReputation) error {
	return b.put(prefixRep+r.UserID, r)
}

// UpdateReputation mutates a reputation record, creating a zero-valued one
// first if the user has none
func (b *Badger) UpdateReputation(userID string, fn func(*model.UserReputation) error) error {
	r := model.UserReputation{UserID: userID}
	return b.updateRecord(prefixRep+userID, &r, func() bool { return true }, func() error {
		r.UserID = userID
		return fn(&r)
	})
}

// AppendHistory appends to the claim's append-only audit log
func (b *Badger) AppendHistory(e model.VeracityHistoryEntry) error {
	key := fmt.Sprintf("%s%s/%020d/%s", prefixHist, e.ClaimID, e.Timestamp.UnixNano(), e.ID)
	return b.put(key, e)
}

// History returns a claim's audit log in append order
func (b *Badger) History(claimID string) ([]model.VeracityHistoryEntry, error) {
	var out []model.VeracityHistoryEntry
	prefix := prefixHist + claimID + "/"
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var e model.VeracityHistoryEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

var _ Store = (*Badger)(nil)
var _ Store = (*Memory)(nil)
