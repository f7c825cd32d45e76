package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/giftapi/internal/core"
)

func openTestStore(t *testing.T, lockTimeout time.Duration) *Store {
	t.Helper()
	ctx := context.Background()

	s, err := Open(ctx, filepath.Join(t.TempDir(), "kids.db"), Options{LockTimeout: lockTimeout})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(ctx))
	return s
}

func date(s string) time.Time {
	d, err := time.Parse(core.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func insertKid(t *testing.T, s *Store, kid core.Kid) core.Kid {
	t.Helper()
	var created core.Kid
	err := s.InTx(context.Background(), func(tx core.Tx) error {
		var err error
		created, err = tx.InsertKid(context.Background(), kid)
		return err
	})
	require.NoError(t, err)
	return created
}

func TestInsertAndGetKid(t *testing.T) {
	s := openTestStore(t, time.Second)
	ctx := context.Background()

	boy := insertKid(t, s, core.Kid{
		Type:      core.KidTypeBoy,
		FirstName: "Tom",
		LastName:  "Sawyer",
		BirthDate: date("2015-04-01"),
		Details:   core.BoyDetails{PantsLength: 70},
	})
	require.NotZero(t, boy.ID)

	got, err := s.GetKid(ctx, boy.ID)
	require.NoError(t, err)
	assert.Equal(t, core.KidTypeBoy, got.Type)
	assert.Equal(t, "Tom", got.FirstName)
	assert.Equal(t, "2015-04-01", got.BirthDate.Format(core.DateLayout))
	assert.Equal(t, int64(0), got.Version)

	details, ok := got.Boy()
	require.True(t, ok)
	assert.Equal(t, 70, details.PantsLength)

	girl := insertKid(t, s, core.Kid{
		Type:      core.KidTypeGirl,
		FirstName: "Anna",
		LastName:  "Berg",
		BirthDate: date("2016-02-10"),
		Details:   core.GirlDetails{SkirtColor: "red"},
	})
	got, err = s.GetKid(ctx, girl.ID)
	require.NoError(t, err)
	g, ok := got.Girl()
	require.True(t, ok)
	assert.Equal(t, "red", g.SkirtColor)
}

func TestGetKidNotFound(t *testing.T) {
	s := openTestStore(t, time.Second)

	_, err := s.GetKid(context.Background(), 404)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = s.GetGift(context.Background(), 1, 404)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestUpdateKidComparesVersion(t *testing.T) {
	s := openTestStore(t, time.Second)
	ctx := context.Background()
	kid := insertKid(t, s, core.Kid{FirstName: "Emil", LastName: "Lund", BirthDate: date("2014-06-06")})

	var updated core.Kid
	err := s.InTx(ctx, func(tx core.Tx) error {
		k := kid
		k.FirstName = "Emma"
		var err error
		updated, err = tx.UpdateKid(ctx, k)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)

	// Same stale version a second time.
	err = s.InTx(ctx, func(tx core.Tx) error {
		_, err := tx.UpdateKid(ctx, kid)
		return err
	})
	assert.ErrorIs(t, err, core.ErrOptimisticConflict)

	err = s.InTx(ctx, func(tx core.Tx) error {
		_, err := tx.UpdateKid(ctx, core.Kid{ID: 999, FirstName: "Nobody", LastName: "Here", BirthDate: date("2014-01-01")})
		return err
	})
	assert.ErrorIs(t, err, core.ErrNotFound)

	got, err := s.GetKid(ctx, kid.ID)
	require.NoError(t, err)
	assert.Equal(t, "Emma", got.FirstName)
	assert.Equal(t, int64(1), got.Version)
}

func TestGiftLifecycle(t *testing.T) {
	s := openTestStore(t, time.Second)
	ctx := context.Background()
	kid := insertKid(t, s, core.Kid{FirstName: "Ida", LastName: "Holm", BirthDate: date("2017-09-09")})

	var gift core.Gift
	err := s.InTx(ctx, func(tx core.Tx) error {
		var err error
		gift, err = tx.InsertGift(ctx, core.Gift{KidID: kid.ID, Name: "Kite", Price: 12.5})
		return err
	})
	require.NoError(t, err)

	err = s.InTx(ctx, func(tx core.Tx) error {
		g := gift
		g.Price = 15
		_, err := tx.UpdateGift(ctx, g)
		return err
	})
	require.NoError(t, err)

	got, err := s.GetGift(ctx, kid.ID, gift.ID)
	require.NoError(t, err)
	assert.Equal(t, 15.0, got.Price)
	assert.Equal(t, int64(1), got.Version)

	gifts, total, err := s.ListGifts(ctx, kid.ID, core.PageRequest{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, gifts, 1)

	var deleted int64
	err = s.InTx(ctx, func(tx core.Tx) error {
		var err error
		deleted, err = tx.DeleteGiftsByKid(ctx, kid.ID)
		if err != nil {
			return err
		}
		return tx.DeleteKid(ctx, kid.ID)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = s.GetKid(ctx, kid.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestInTxRollsBack(t *testing.T) {
	s := openTestStore(t, time.Second)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx core.Tx) error {
		if _, err := tx.InsertKidRows(ctx, []core.KidRow{
			{FirstName: "Ola", LastName: "Dahl", BirthDate: date("2012-01-01")},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		_ = s.InTx(ctx, func(tx core.Tx) error {
			if _, err := tx.InsertKidRows(ctx, []core.KidRow{
				{FirstName: "Per", LastName: "Dahl", BirthDate: date("2012-01-01")},
			}); err != nil {
				return err
			}
			panic("worker crashed")
		})
	})

	n, err := s.CountKids(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestInsertKidRowsAndList(t *testing.T) {
	s := openTestStore(t, time.Second)
	ctx := context.Background()

	rows := []core.KidRow{
		{FirstName: "Ada", LastName: "Lind", BirthDate: date("2010-01-01")},
		{FirstName: "Bo", LastName: "Lind", BirthDate: date("2011-01-01")},
		{FirstName: "Cy", LastName: "Lind", BirthDate: date("2012-01-01")},
	}
	err := s.InTx(ctx, func(tx core.Tx) error {
		n, err := tx.InsertKidRows(ctx, rows)
		assert.Equal(t, int64(3), n)
		return err
	})
	require.NoError(t, err)

	kids, total, err := s.ListKids(ctx, core.PageRequest{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, kids, 1)
	assert.Equal(t, "Cy", kids[0].FirstName)
	assert.Equal(t, core.KidTypeKid, kids[0].Type)
	assert.Nil(t, kids[0].Details)
}

func TestLockWaitTimesOut(t *testing.T) {
	s := openTestStore(t, 100*time.Millisecond)
	ctx := context.Background()
	kid := insertKid(t, s, core.Kid{FirstName: "Liv", LastName: "Ek", BirthDate: date("2013-03-03")})

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

	start := time.Now()
	err := s.InTx(ctx, func(tx core.Tx) error {
		_, err := tx.LockKid(ctx, kid.ID)
		return err
	})
	close(release)

	assert.ErrorIs(t, err, core.ErrLockTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	require.NoError(t, <-done)
}

func TestDSN(t *testing.T) {
	assert.Equal(t,
		"kids.db?_pragma=busy_timeout(3000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		dsn("kids.db", 3*time.Second))
	assert.Equal(t,
		"file:kids.db?mode=rwc&_pragma=busy_timeout(0)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		dsn("file:kids.db?mode=rwc", 0))
}
