package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvshvl/platform-core/internal/domain"
)

var repoT0 = time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)

// stubRow plays back scripted column values through pgx.Row.Scan.
type stubRow struct {
	vals []any
	err  error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		v := r.vals[i]
		switch p := d.(type) {
		case *string:
			*p = v.(string)
		case **string:
			if v == nil {
				*p = nil
			} else {
				s := v.(string)
				*p = &s
			}
		case *bool:
			*p = v.(bool)
		case *time.Time:
			*p = v.(time.Time)
		case **time.Time:
			if v == nil {
				*p = nil
			} else {
				t := v.(time.Time)
				*p = &t
			}
		}
	}
	return nil
}

// scriptedDB is a Querier that plays back queued rows and command tags,
// recording the statements it saw.
type scriptedDB struct {
	rows  []stubRow
	tags  []pgconn.CommandTag
	execs []string
}

func (db *scriptedDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	row := db.rows[0]
	db.rows = db.rows[1:]
	return row
}

func (db *scriptedDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.execs = append(db.execs, sql)
	tag := db.tags[0]
	db.tags = db.tags[1:]
	return tag, nil
}

func (db *scriptedDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func userRow(u *domain.User) stubRow {
	var expires, lastLogin any
	if u.SubscriptionExpiresAt != nil {
		expires = *u.SubscriptionExpiresAt
	}
	if u.LastLoginAt != nil {
		lastLogin = *u.LastLoginAt
	}
	return stubRow{vals: []any{
		u.ID, u.Email, nil, nil,
		u.SubscriptionTier, u.SubscriptionStatus, expires,
		u.SubscriptionAutoRenew, nil, nil,
		u.IsActive, u.CreatedAt, u.UpdatedAt, lastLogin,
	}}
}

func TestGetOrCreateNewUser(t *testing.T) {
	db := &scriptedDB{
		rows: []stubRow{{err: pgx.ErrNoRows}},
		tags: []pgconn.CommandTag{pgconn.NewCommandTag("INSERT 0 1")},
	}
	r := &UserRepository{db: db}

	u, err := r.GetOrCreate(context.Background(), domain.Claims{Email: "alice@example.com"}, repoT0, 7*24*time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, domain.TierTrial, u.SubscriptionTier)
	assert.Equal(t, domain.StatusActive, u.SubscriptionStatus)
	require.NotNil(t, u.SubscriptionExpiresAt)
	assert.Equal(t, repoT0.Add(7*24*time.Hour), *u.SubscriptionExpiresAt)
}

func TestGetOrCreateExistingUser(t *testing.T) {
	exp := repoT0.Add(7 * 24 * time.Hour)
	existing := &domain.User{
		ID:                    "u-1",
		Email:                 "alice@example.com",
		SubscriptionTier:      domain.TierTrial,
		SubscriptionStatus:    domain.StatusActive,
		SubscriptionExpiresAt: &exp,
		IsActive:              true,
		CreatedAt:             repoT0.Add(-time.Hour),
		UpdatedAt:             repoT0.Add(-time.Hour),
	}
	db := &scriptedDB{
		rows: []stubRow{userRow(existing)},
		tags: []pgconn.CommandTag{pgconn.NewCommandTag("UPDATE 1")},
	}
	r := &UserRepository{db: db}

	u, err := r.GetOrCreate(context.Background(), domain.Claims{Email: "alice@example.com"}, repoT0, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	require.NotNil(t, u.LastLoginAt)
	assert.Equal(t, repoT0, *u.LastLoginAt)
}

func TestGetOrCreateConcurrentConflict(t *testing.T) {
	// Two first logins race: the insert hits ON CONFLICT DO NOTHING and
	// affects zero rows, and the loser must re-read and return the
	// winner's row instead of inventing a second identity.
	exp := repoT0.Add(7 * 24 * time.Hour)
	winner := &domain.User{
		ID:                    "winner-id",
		Email:                 "alice@example.com",
		SubscriptionTier:      domain.TierTrial,
		SubscriptionStatus:    domain.StatusActive,
		SubscriptionExpiresAt: &exp,
		IsActive:              true,
		CreatedAt:             repoT0,
		UpdatedAt:             repoT0,
	}
	db := &scriptedDB{
		rows: []stubRow{
			{err: pgx.ErrNoRows},
			userRow(winner),
		},
		tags: []pgconn.CommandTag{pgconn.NewCommandTag("INSERT 0 0")},
	}
	r := &UserRepository{db: db}

	u, err := r.GetOrCreate(context.Background(), domain.Claims{Email: "alice@example.com"}, repoT0, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "winner-id", u.ID)

	// Exactly one insert was attempted.
	inserts := 0
	for _, sql := range db.execs {
		if strings.Contains(sql, "INSERT INTO users") {
			inserts++
		}
	}
	assert.Equal(t, 1, inserts)
	assert.Empty(t, db.rows, "loser re-read consumed the winner row")
}
