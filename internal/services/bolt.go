package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/MegaGrindStone/idea-generator/internal/models"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// BoltReader looks users up in a BoltDB file without holding it open. Every lookup opens the file
// read-only, which takes a shared lock, so a writer such as ideactl only has to wait for lookups in
// flight rather than for the whole lifetime of the server.
type BoltReader struct {
	path    string
	timeout time.Duration
}

// BoltDB stores users and their public metadata in a BoltDB file. It backs the identity collaborator:
// the subscription flag that unlocks the idea generator lives in each user's metadata.
type BoltDB struct {
	db *bolt.DB
}

var usersBucket = []byte("users")

// NewBoltDB creates a new BoltDB instance with the specified file path. It initializes the database
// with required buckets and returns an error if the database cannot be opened or initialized. The
// database file is created with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(usersBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return BoltDB{}, fmt.Errorf("failed to create buckets: %w", err)
	}

	return BoltDB{db: db}, nil
}

// NewBoltReader creates a BoltReader for path, creating the file and its buckets first if needed.
func NewBoltReader(path string) (BoltReader, error) {
	db, err := NewBoltDB(path)
	if err != nil {
		return BoltReader{}, err
	}
	if err := db.Close(); err != nil {
		return BoltReader{}, fmt.Errorf("failed to close bolt db: %w", err)
	}
	return BoltReader{path: path, timeout: time.Second}, nil
}

// User retrieves the user with the given ID, or models.ErrUserNotFound. It waits up to a second for a
// writer to release the file.
func (b BoltReader) User(ctx context.Context, id string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}

	timeout := b.timeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return models.User{}, context.DeadlineExceeded
	}

	db, err := bolt.Open(b.path, 0600, &bolt.Options{Timeout: timeout, ReadOnly: true})
	if err != nil {
		return models.User{}, fmt.Errorf("failed to open bolt db: %w", err)
	}
	defer db.Close()

	var user models.User
	err = db.View(func(tx *bolt.Tx) error {
		var err error
		user, err = getUser(tx, id)
		return err
	})
	return user, err
}

// Close releases the database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

// AddUser stores a new user. An empty ID is replaced with a generated one and a zero CreatedAt with
// the current time. It returns the stored user.
func (b BoltDB) AddUser(_ context.Context, user models.User) (models.User, error) {
	if user.ID == "" {
		user.ID = "user_" + uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(usersBucket)
		if bk.Get([]byte(user.ID)) != nil {
			return fmt.Errorf("user %s already exists", user.ID)
		}
		return putUser(bk, user)
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// User retrieves the user with the given ID, or models.ErrUserNotFound.
func (b BoltDB) User(ctx context.Context, id string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}

	var user models.User
	err := b.db.View(func(tx *bolt.Tx) error {
		var err error
		user, err = getUser(tx, id)
		return err
	})
	return user, err
}

// Users retrieves all stored users ordered by creation time.
func (b BoltDB) Users(context.Context) ([]models.User, error) {
	var users []models.User
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(usersBucket).ForEach(func(_, v []byte) error {
			var user models.User
			if err := json.Unmarshal(v, &user); err != nil {
				return fmt.Errorf("failed to unmarshal user: %w", err)
			}
			users = append(users, user)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(users, func(a, b models.User) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return users, nil
}

// UpdateUser replaces an existing user. It returns models.ErrUserNotFound if the user doesn't exist.
func (b BoltDB) UpdateUser(_ context.Context, user models.User) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(usersBucket)
		if bk.Get([]byte(user.ID)) == nil {
			return models.ErrUserNotFound
		}
		return putUser(bk, user)
	})
}

// SetSubscription writes tier into the user's public metadata. An empty tier removes the key.
func (b BoltDB) SetSubscription(ctx context.Context, id string, tier models.Tier) (models.User, error) {
	user, err := b.User(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	if user.PublicMetadata == nil {
		user.PublicMetadata = map[string]any{}
	}
	if tier == "" {
		delete(user.PublicMetadata, models.SubscriptionMetadataKey)
	} else {
		user.PublicMetadata[models.SubscriptionMetadataKey] = string(tier)
	}

	if err := b.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return models.User{}, err
		}
		return models.User{}, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

func getUser(tx *bolt.Tx, id string) (models.User, error) {
	bk := tx.Bucket(usersBucket)
	if bk == nil {
		return models.User{}, models.ErrUserNotFound
	}
	v := bk.Get([]byte(id))
	if v == nil {
		return models.User{}, models.ErrUserNotFound
	}

	var user models.User
	if err := json.Unmarshal(v, &user); err != nil {
		return models.User{}, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return user, nil
}

func putUser(bk *bolt.Bucket, user models.User) error {
	v, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	return bk.Put([]byte(user.ID), v)
}
