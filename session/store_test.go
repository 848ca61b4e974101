package session_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlyBadawy/Securial-sub000/session"
)

// storeUnderTest runs the conformance suite against each backend. The
// postgres store shares the same contract but needs a live database, so
// it is exercised in integration environments instead.
func storesUnderTest(t *testing.T) map[string]session.Store {
	t.Helper()

	bolt, err := session.NewBoltStore(filepath.Join(t.TempDir(), "sessions.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	return map[string]session.Store{
		"memory": session.NewMemoryStore(),
		"bbolt":  bolt,
	}
}

func TestStoreCreateAndFind(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := session.New("user-1", "203.0.113.7", "agent/1.0", "token-0", time.Hour)
			require.NoError(t, store.Create(ctx, s))

			got, err := store.FindByID(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, s.ID, got.ID)
			assert.Equal(t, s.UserID, got.UserID)
			assert.Equal(t, s.RefreshToken, got.RefreshToken)

			got, err = store.FindByRefreshToken(ctx, "token-0")
			require.NoError(t, err)
			assert.Equal(t, s.ID, got.ID)

			_, err = store.FindByID(ctx, "missing")
			assert.ErrorIs(t, err, session.ErrNotFound)

			_, err = store.FindByRefreshToken(ctx, "missing")
			assert.ErrorIs(t, err, session.ErrNotFound)
		})
	}
}

func TestStoreRotateSupersedesOldToken(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := session.New("user-1", "203.0.113.7", "agent/1.0", "token-0", time.Hour)
			require.NoError(t, store.Create(ctx, s))

			require.NoError(t, s.Refresh("token-1", time.Hour))
			require.NoError(t, store.Rotate(ctx, s, "token-0"))

			// The old token no longer resolves; the new one does.
			_, err := store.FindByRefreshToken(ctx, "token-0")
			assert.ErrorIs(t, err, session.ErrNotFound)

			got, err := store.FindByRefreshToken(ctx, "token-1")
			require.NoError(t, err)
			assert.Equal(t, uint64(1), got.RefreshCount)

			// Rotating against the superseded token is a conflict.
			err = store.Rotate(ctx, s, "token-0")
			assert.ErrorIs(t, err, session.ErrConflict)
		})
	}
}

func TestStoreRotateMissingSession(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := session.New("user-1", "203.0.113.7", "agent/1.0", "token-0", time.Hour)
			err := store.Rotate(ctx, s, "token-0")
			assert.ErrorIs(t, err, session.ErrNotFound)
		})
	}
}

func TestStoreConcurrentRotationSingleWinner(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := session.New("user-1", "203.0.113.7", "agent/1.0", "token-0", time.Hour)
			require.NoError(t, store.Create(ctx, s))

			const racers = 16
			var wg sync.WaitGroup
			errs := make([]error, racers)

			for i := 0; i < racers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					rotated := *s
					if err := rotated.Refresh(fmt.Sprintf("token-%d", i+1), time.Hour); err != nil {
						errs[i] = err
						return
					}
					errs[i] = store.Rotate(ctx, &rotated, "token-0")
				}(i)
			}
			wg.Wait()

			wins := 0
			for _, err := range errs {
				if err == nil {
					wins++
				} else {
					assert.ErrorIs(t, err, session.ErrConflict)
				}
			}
			assert.Equal(t, 1, wins, "exactly one concurrent rotation may succeed")
		})
	}
}

func TestStoreRevoke(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := session.New("user-1", "203.0.113.7", "agent/1.0", "token-0", time.Hour)
			require.NoError(t, store.Create(ctx, s))

			active, err := store.FindActiveByID(ctx, s.ID)
			require.NoError(t, err)
			assert.False(t, active.Revoked)

			require.NoError(t, store.Revoke(ctx, s.ID))

			_, err = store.FindActiveByID(ctx, s.ID)
			assert.ErrorIs(t, err, session.ErrNotFound)

			// Still visible to the unfiltered lookup.
			got, err := store.FindByID(ctx, s.ID)
			require.NoError(t, err)
			assert.True(t, got.Revoked)

			// Idempotent.
			assert.NoError(t, store.Revoke(ctx, s.ID))
		})
	}
}

func TestStoreUserScopedOperations(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				s := session.New("user-1", "203.0.113.7", "agent/1.0", fmt.Sprintf("u1-token-%d", i), time.Hour)
				require.NoError(t, store.Create(ctx, s))
			}
			other := session.New("user-2", "203.0.113.8", "agent/1.0", "u2-token", time.Hour)
			require.NoError(t, store.Create(ctx, other))

			mine, err := store.ListByUser(ctx, "user-1")
			require.NoError(t, err)
			assert.Len(t, mine, 3)

			require.NoError(t, store.RevokeAllForUser(ctx, "user-1"))
			mine, err = store.ListByUser(ctx, "user-1")
			require.NoError(t, err)
			for _, s := range mine {
				assert.True(t, s.Revoked)
			}

			// The other user's session is untouched.
			theirs, err := store.FindActiveByID(ctx, other.ID)
			require.NoError(t, err)
			assert.False(t, theirs.Revoked)

			require.NoError(t, store.DeleteByUser(ctx, "user-1"))
			mine, err = store.ListByUser(ctx, "user-1")
			require.NoError(t, err)
			assert.Empty(t, mine)
		})
	}
}
