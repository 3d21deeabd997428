package services_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MegaGrindStone/idea-generator/internal/models"
	"github.com/MegaGrindStone/idea-generator/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoltDB(t *testing.T) services.BoltDB {
	t.Helper()
	db, err := services.NewBoltDB(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBoltDBUsers(t *testing.T) {
	db := newBoltDB(t)
	ctx := context.Background()

	alice, err := db.AddUser(ctx, models.User{Name: "alice", CreatedAt: time.Unix(100, 0)})
	require.NoError(t, err)
	assert.Contains(t, alice.ID, "user_")

	bob, err := db.AddUser(ctx, models.User{ID: "user_bob", Name: "bob", CreatedAt: time.Unix(200, 0)})
	require.NoError(t, err)

	_, err = db.AddUser(ctx, models.User{ID: "user_bob"})
	assert.Error(t, err)

	got, err := db.User(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)

	users, err := db.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, alice.ID, users[0].ID)
	assert.Equal(t, bob.ID, users[1].ID)

	_, err = db.User(ctx, "user_ghost")
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	err = db.UpdateUser(ctx, models.User{ID: "user_ghost"})
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestBoltDBSetSubscription(t *testing.T) {
	db := newBoltDB(t)
	ctx := context.Background()

	u, err := db.AddUser(ctx, models.User{Name: "carol"})
	require.NoError(t, err)
	assert.Empty(t, models.CapabilitiesFor(u))

	u, err = db.SetSubscription(ctx, u.ID, models.TierPremium)
	require.NoError(t, err)

	stored, err := db.User(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierPremium, stored.Subscription())
	assert.Equal(t, []models.Capability{models.CapabilityGenerate}, models.CapabilitiesFor(stored))

	_, err = db.SetSubscription(ctx, u.ID, "")
	require.NoError(t, err)
	stored, err = db.User(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Subscription())

	_, err = db.SetSubscription(ctx, "user_ghost", models.TierPremium)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestBoltReaderAlongsideWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	ctx := context.Background()

	reader, err := services.NewBoltReader(path)
	require.NoError(t, err)

	_, err = reader.User(ctx, "user_dana")
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	// A writer can open the file while the reader is in use.
	writer, err := services.NewBoltDB(path)
	require.NoError(t, err)
	_, err = writer.AddUser(ctx, models.User{ID: "user_dana", Name: "dana"})
	require.NoError(t, err)
	_, err = writer.SetSubscription(ctx, "user_dana", models.TierPremium)
	require.NoError(t, err)

	// Lookups wait for the writer to let go of the file.
	released := make(chan struct{})
	go func() {
		time.Sleep(100 * time.Millisecond)
		assert.NoError(t, writer.Close())
		close(released)
	}()

	u, err := reader.User(ctx, "user_dana")
	require.NoError(t, err)
	assert.Equal(t, models.TierPremium, u.Subscription())
	<-released

	// Concurrent lookups share the file and don't block each other.
	errs := make(chan error, 8)
	for range 8 {
		go func() {
			_, err := reader.User(ctx, "user_dana")
			errs <- err
		}()
	}
	for range 8 {
		assert.NoError(t, <-errs)
	}

	writer, err = services.NewBoltDB(path)
	require.NoError(t, err)
	_, err = writer.SetSubscription(ctx, "user_dana", "")
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	u, err = reader.User(ctx, "user_dana")
	require.NoError(t, err)
	assert.Empty(t, u.Subscription())
}

func TestBoltReaderRespectsContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	reader, err := services.NewBoltReader(path)
	require.NoError(t, err)

	writer, err := services.NewBoltDB(path)
	require.NoError(t, err)
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = reader.User(ctx, "user_any")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = reader.User(canceled, "user_any")
	assert.ErrorIs(t, err, context.Canceled)
}
