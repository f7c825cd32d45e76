package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/giftapi/internal/config"
	"github.com/JonMunkholm/giftapi/internal/core"
)

// openTestStore connects to GIFTAPI_TEST_DATABASE_URL and empties both
// tables. The test is skipped when the variable is unset.
func openTestStore(t *testing.T, lockTimeout time.Duration) *Store {
	t.Helper()
	url := os.Getenv("GIFTAPI_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("GIFTAPI_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	s, err := Open(ctx, config.DatabaseConfig{
		URL:         url,
		MaxConns:    4,
		MinConns:    1,
		LockTimeout: lockTimeout,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(ctx))
	_, err = s.pool.Exec(ctx, `TRUNCATE gift, kid RESTART IDENTITY`)
	require.NoError(t, err)
	return s
}

func TestMapErr(t *testing.T) {
	err := mapErr(&pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}, "lock kid 1")
	assert.ErrorIs(t, err, core.ErrLockTimeout)

	err = mapErr(&pgconn.PgError{Code: "23503"}, "insert gift")
	assert.False(t, errors.Is(err, core.ErrLockTimeout))
	assert.Contains(t, err.Error(), "insert gift")
}

func TestDetailColumns(t *testing.T) {
	pants, skirt := detailColumns(core.Kid{Type: core.KidTypeBoy, Details: core.BoyDetails{PantsLength: 64}})
	require.NotNil(t, pants)
	assert.Equal(t, int32(64), *pants)
	assert.Nil(t, skirt)

	pants, skirt = detailColumns(core.Kid{Type: core.KidTypeKid})
	assert.Nil(t, pants)
	assert.Nil(t, skirt)
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t, time.Second)
	ctx := context.Background()

	var kid core.Kid
	err := s.InTx(ctx, func(tx core.Tx) error {
		var err error
		kid, err = tx.InsertKid(ctx, core.Kid{
			Type:      core.KidTypeGirl,
			FirstName: "Anna",
			LastName:  "Berg",
			BirthDate: time.Date(2016, 2, 10, 0, 0, 0, 0, time.UTC),
			Details:   core.GirlDetails{SkirtColor: "blue"},
		})
		return err
	})
	require.NoError(t, err)

	got, err := s.GetKid(ctx, kid.ID)
	require.NoError(t, err)
	assert.Equal(t, "2016-02-10", got.BirthDate.Format(core.DateLayout))
	g, ok := got.Girl()
	require.True(t, ok)
	assert.Equal(t, "blue", g.SkirtColor)

	err = s.InTx(ctx, func(tx core.Tx) error {
		n, err := tx.InsertKidRows(ctx, []core.KidRow{
			{FirstName: "Ada", LastName: "Lind", BirthDate: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)},
			{FirstName: "Bo", LastName: "Lind", BirthDate: time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC)},
		})
		assert.Equal(t, int64(2), n)
		return err
	})
	require.NoError(t, err)

	n, err := s.CountKids(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	err = s.InTx(ctx, func(tx core.Tx) error {
		stale := got
		stale.Version = 7
		_, err := tx.UpdateKid(ctx, stale)
		return err
	})
	assert.ErrorIs(t, err, core.ErrOptimisticConflict)
}

func TestLockKidTimesOut(t *testing.T) {
	s := openTestStore(t, 100*time.Millisecond)
	ctx := context.Background()

	var kid core.Kid
	require.NoError(t, s.InTx(ctx, func(tx core.Tx) error {
		var err error
		kid, err = tx.InsertKid(ctx, core.Kid{
			FirstName: "Liv",
			LastName:  "Ek",
			BirthDate: time.Date(2013, 3, 3, 0, 0, 0, 0, time.UTC),
		})
		return err
	}))

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.InTx(ctx, func(tx core.Tx) error {
			if _, err := tx.LockKid(ctx, kid.ID); err != nil {
				return err
			}
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := s.InTx(ctx, func(tx core.Tx) error {
		_, err := tx.LockKid(ctx, kid.ID)
		return err
	})
	close(release)

	assert.ErrorIs(t, err, core.ErrLockTimeout)
	require.NoError(t, <-done)
}
