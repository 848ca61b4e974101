package session

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketSessions = []byte("sessions")
	bucketRefresh  = []byte("refresh_index")
)

// BoltStore is a Store backed by a bbolt database. Sessions survive
// restarts. bbolt serializes writers, so the read-check-write inside
// Rotate's update transaction is atomic without extra locking.
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore opens (or creates) the session database at path.
func NewBoltStore(path string, options *bolt.Options) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSessions); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketRefresh)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing session buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close releases the underlying database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

func (b *BoltStore) Create(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketSessions).Put([]byte(s.ID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketRefresh).Put([]byte(s.RefreshToken), []byte(s.ID))
	})
}

func (b *BoltStore) FindByID(ctx context.Context, id string) (*Session, error) {
	var s *Session
	err := b.db.View(func(tx *bolt.Tx) error {
		var err error
		s, err = getSession(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (b *BoltStore) FindActiveByID(ctx context.Context, id string) (*Session, error) {
	s, err := b.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Revoked {
		return nil, ErrNotFound
	}
	return s, nil
}

func (b *BoltStore) FindByRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	var s *Session
	err := b.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketRefresh).Get([]byte(refreshToken))
		if id == nil {
			return ErrNotFound
		}
		var err error
		s, err = getSession(tx, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (b *BoltStore) Rotate(ctx context.Context, s *Session, oldToken string) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		current, err := getSession(tx, s.ID)
		if err != nil {
			return err
		}
		if current.RefreshToken != oldToken {
			return ErrConflict
		}
		if err := tx.Bucket(bucketRefresh).Delete([]byte(oldToken)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketSessions).Put([]byte(s.ID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketRefresh).Put([]byte(s.RefreshToken), []byte(s.ID))
	})
}

func (b *BoltStore) Revoke(ctx context.Context, id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		s, err := getSession(tx, id)
		if err != nil {
			return err
		}
		s.Revoke()
		return putSession(tx, s)
	})
}

func (b *BoltStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	var out []*Session
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(_, v []byte) error {
			var s Session
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("decoding session: %w", err)
			}
			if s.UserID == userID {
				out = append(out, &s)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BoltStore) RevokeAllForUser(ctx context.Context, userID string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return forEachUserSession(tx, userID, func(s *Session) error {
			s.Revoke()
			return putSession(tx, s)
		})
	})
}

func (b *BoltStore) DeleteByUser(ctx context.Context, userID string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return forEachUserSession(tx, userID, func(s *Session) error {
			if err := tx.Bucket(bucketRefresh).Delete([]byte(s.RefreshToken)); err != nil {
				return err
			}
			return tx.Bucket(bucketSessions).Delete([]byte(s.ID))
		})
	})
}

func getSession(tx *bolt.Tx, id string) (*Session, error) {
	data := tx.Bucket(bucketSessions).Get([]byte(id))
	if data == nil {
		return nil, ErrNotFound
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &s, nil
}

func putSession(tx *bolt.Tx, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return tx.Bucket(bucketSessions).Put([]byte(s.ID), data)
}

// forEachUserSession collects matching sessions first, then applies fn;
// mutating a bucket during ForEach is not allowed.
func forEachUserSession(tx *bolt.Tx, userID string, fn func(*Session) error) error {
	var matched []*Session
	err := tx.Bucket(bucketSessions).ForEach(func(_, v []byte) error {
		var s Session
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("decoding session: %w", err)
		}
		if s.UserID == userID {
			matched = append(matched, &s)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, s := range matched {
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}
