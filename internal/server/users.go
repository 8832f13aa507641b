package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/groundworklabs/groundwork/internal/cache"
)

// User is the scaffold's placeholder record. Real applications replace this
// with their own entities.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrUserNotFound is returned when no user has the requested id.
var ErrUserNotFound = errors.New("user not found")

// UserStore reads and writes users through the database handle, with
// cache-aside reads when a cache is attached.
type UserStore struct {
	db      *sql.DB
	dialect string
	cache   *cache.Cache
}

// NewUserStore creates a store over an open database handle. dialect selects
// the placeholder style; cache may be nil.
func NewUserStore(db *sql.DB, dialect string, c *cache.Cache) *UserStore {
	return &UserStore{db: db, dialect: dialect, cache: c}
}

// placeholder returns the parameter placeholder for the store's dialect.
func (s *UserStore) placeholder(position int) string {
	if s.dialect == "postgresql" {
		return fmt.Sprintf("$%d", position)
	}
	return "?"
}

// Create inserts a user and returns it with its assigned id.
func (s *UserStore) Create(ctx context.Context, email string) (User, error) {
	now := time.Now().UTC()
	user := User{Email: email, CreatedAt: now}

	if s.dialect == "postgresql" {
		err := s.db.QueryRowContext(ctx,
			`INSERT INTO users (email, created_at) VALUES ($1, $2) RETURNING id`,
			email, now).Scan(&user.ID)
		if err != nil {
			return User{}, fmt.Errorf("insert user: %w", err)
		}
	} else {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO users (email, created_at) VALUES (?, ?)`, email, now)
		if err != nil {
			return User{}, fmt.Errorf("insert user: %w", err)
		}
		user.ID, err = res.LastInsertId()
		if err != nil {
			return User{}, fmt.Errorf("insert user: %w", err)
		}
	}

	return user, nil
}

// Get fetches a user by id, serving from cache when possible and populating
// the cache on miss.
func (s *UserStore) Get(ctx context.Context, id int64) (User, error) {
	cacheKey := fmt.Sprintf("users:%d", id)

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey); err == nil {
			var user User
			if err := json.Unmarshal([]byte(raw), &user); err == nil {
				return user, nil
			}
			// Unreadable cached value: fall through to the database.
		}
	}

	var user User
	query := fmt.Sprintf(`SELECT id, email, created_at FROM users WHERE id = %s`, s.placeholder(1))
	err := s.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Email, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("select user %d: %w", id, err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(user); err == nil {
			_ = s.cache.Set(ctx, cacheKey, string(raw), 0)
		}
	}
	return user, nil
}
