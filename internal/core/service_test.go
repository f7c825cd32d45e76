package core_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/giftapi/internal/config"
	"github.com/JonMunkholm/giftapi/internal/core"
	"github.com/JonMunkholm/giftapi/internal/metrics"
	"github.com/JonMunkholm/giftapi/internal/store/sqlite"
)

type testEnv struct {
	service *core.Service
	store   *sqlite.Store
	staging string
}

func newTestEnv(t *testing.T, exec config.ExecutorConfig) *testEnv {
	t.Helper()
	return newTestEnvWithLockTimeout(t, exec, 5*time.Second)
}

func newTestEnvWithLockTimeout(t *testing.T, exec config.ExecutorConfig, lockTimeout time.Duration) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "kids.db"), sqlite.Options{LockTimeout: lockTimeout})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))

	cfg := &config.Config{}
	cfg.Import.BatchSize = 2
	cfg.Import.StagingDir = t.TempDir()
	cfg.Executor = exec

	svc, err := core.NewService(store, cfg, core.DefaultKidTypes(), metrics.New())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc.Shutdown(ctx)
	})

	return &testEnv{service: svc, store: store, staging: cfg.Import.StagingDir}
}

func defaultExecutor() config.ExecutorConfig {
	return config.ExecutorConfig{
		CorePoolSize:     1,
		MaxPoolSize:      1,
		QueueCapacity:    4,
		ThreadNamePrefix: "kids-import-",
		RejectionPolicy:  config.PolicyReject,
	}
}

func birth(s string) time.Time {
	d, err := time.Parse(core.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func (e *testEnv) createKid(t *testing.T, first string) core.Kid {
	t.Helper()
	kid, err := e.service.CreateKid(context.Background(), core.NewKid{
		FirstName: first,
		LastName:  "Berg",
		BirthDate: birth("2015-05-05"),
	})
	require.NoError(t, err)
	return kid
}

// stagedFiles counts the files left in the staging dir, or -1 if it cannot be read.
func (e *testEnv) stagedFiles() int {
	entries, err := os.ReadDir(e.staging)
	if err != nil {
		return -1
	}
	return len(entries)
}

// Scenario: a kid accepts three gifts and refuses the fourth.
func TestCreateGift_LimitIsEnforced(t *testing.T) {
	env := newTestEnv(t, defaultExecutor())
	ctx := context.Background()
	kid := env.createKid(t, "Tom")

	for _, name := range []string{"Kite", "Ball", "Book"} {
		_, err := env.service.CreateGift(ctx, kid.ID, core.NewGift{Name: name, Price: 10})
		require.NoError(t, err)
	}

	_, err := env.service.CreateGift(ctx, kid.ID, core.NewGift{Name: "Bike", Price: 100})
	assert.ErrorIs(t, err, core.ErrTooManyGifts)

	n, err := env.store.CountGifts(ctx, kid.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

// Scenario: two concurrent creations race for the last slot.
func TestCreateGift_ConcurrentLastSlot(t *testing.T) {
	env := newTestEnv(t, defaultExecutor())
	ctx := context.Background()
	kid := env.createKid(t, "Tom")

	for _, name := range []string{"Kite", "Ball"} {
		_, err := env.service.CreateGift(ctx, kid.ID, core.NewGift{Name: name, Price: 10})
		require.NoError(t, err)
	}

	errs := make([]error, 2)
	var g errgroup.Group
	for i := range errs {
		g.Go(func() error {
			_, errs[i] = env.service.CreateGift(ctx, kid.ID, core.NewGift{Name: "Racer", Price: 5})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok, tooMany int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, core.ErrTooManyGifts):
			tooMany++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, tooMany)

	n, err := env.store.CountGifts(ctx, kid.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestCreateGift_UnknownKid(t *testing.T) {
	env := newTestEnv(t, defaultExecutor())

	_, err := env.service.CreateGift(context.Background(), 404, core.NewGift{Name: "Kite", Price: 1})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = env.service.ListGifts(context.Background(), 404, core.PageRequest{})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCreateGift_LockTimeout(t *testing.T) {
	env := newTestEnvWithLockTimeout(t, defaultExecutor(), 200*time.Millisecond)
	ctx := context.Background()
	kid := env.createKid(t, "Tom")

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- env.store.InTx(ctx, func(tx core.Tx) error {
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
	_, err := env.service.CreateGift(ctx, kid.ID, core.NewGift{Name: "Kite", Price: 5})
	assert.ErrorIs(t, err, core.ErrLockTimeout)
	assert.NotErrorIs(t, err, core.ErrNotFound)
	assert.Less(t, time.Since(start), 3*time.Second)

	close(release)
	require.NoError(t, <-done)

	n, err := env.store.CountGifts(ctx, kid.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = env.service.CreateGift(ctx, kid.ID, core.NewGift{Name: "Kite", Price: 5})
	assert.NoError(t, err)
}

// Scenario: two writers start from version 0; the second to commit loses.
func TestUpdateKid_ConcurrentWritersConflict(t *testing.T) {
	env := newTestEnv(t, defaultExecutor())
	ctx := context.Background()
	kid := env.createKid(t, "Tom")
	require.Equal(t, int64(0), kid.Version)

	names := []string{"Anna", "Bert"}
	results := make([]core.Kid, len(names))
	errs := make([]error, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			version := kid.Version
			results[i], errs[i] = env.service.UpdateKid(ctx, kid.ID, core.KidPatch{
				FirstName: &name,
				Version:   &version,
			})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "both writers succeeded")
			winner = i
			continue
		}
		assert.ErrorIs(t, err, core.ErrOptimisticConflict)
	}
	require.NotEqual(t, -1, winner, "no writer succeeded")

	got, err := env.service.GetKid(ctx, kid.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, names[winner], got.FirstName)
	assert.Equal(t, results[winner].Version, got.Version)
}

func TestUpdateKid_SequentialVersions(t *testing.T) {
	env := newTestEnv(t, defaultExecutor())
	ctx := context.Background()
	kid := env.createKid(t, "Tom")

	last := "Lund"
	updated, err := env.service.UpdateKid(ctx, kid.ID, core.KidPatch{LastName: &last})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)
	assert.Equal(t, "Tom", updated.FirstName)

	stale := int64(0)
	_, err = env.service.UpdateKid(ctx, kid.ID, core.KidPatch{LastName: &last, Version: &stale})
	assert.ErrorIs(t, err, core.ErrOptimisticConflict)

	bad := "lund"
	_, err = env.service.UpdateKid(ctx, kid.ID, core.KidPatch{LastName: &bad})
	var verrs core.ValidationErrors
	assert.ErrorAs(t, err, &verrs)

	_, err = env.service.UpdateKid(ctx, 404, core.KidPatch{LastName: &last})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestUpdateGift_Versions(t *testing.T) {
	env := newTestEnv(t, defaultExecutor())
	ctx := context.Background()
	kid := env.createKid(t, "Tom")

	gift, err := env.service.CreateGift(ctx, kid.ID, core.NewGift{Name: "Kite", Price: 10})
	require.NoError(t, err)

	price := 12.5
	updated, err := env.service.UpdateGift(ctx, kid.ID, gift.ID, core.GiftPatch{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)
	assert.Equal(t, "Kite", updated.Name)

	stale := int64(0)
	_, err = env.service.UpdateGift(ctx, kid.ID, gift.ID, core.GiftPatch{Price: &price, Version: &stale})
	assert.ErrorIs(t, err, core.ErrOptimisticConflict)

	other := env.createKid(t, "Ina")
	_, err = env.service.UpdateGift(ctx, other.ID, gift.ID, core.GiftPatch{Price: &price})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDeleteKid_RemovesGiftsAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t, defaultExecutor())
	ctx := context.Background()
	kid := env.createKid(t, "Tom")

	var giftIDs []int64
	for _, name := range []string{"Kite", "Ball"} {
		gift, err := env.service.CreateGift(ctx, kid.ID, core.NewGift{Name: name, Price: 10})
		require.NoError(t, err)
		giftIDs = append(giftIDs, gift.ID)
	}

	require.NoError(t, env.service.DeleteKid(ctx, kid.ID))
	require.NoError(t, env.service.DeleteKid(ctx, kid.ID))

	_, err := env.service.GetKid(ctx, kid.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	for _, id := range giftIDs {
		_, err := env.service.GetGift(ctx, kid.ID, id)
		assert.ErrorIs(t, err, core.ErrNotFound, "gift %d", id)
	}

	n, err := env.store.CountGifts(ctx, kid.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.NoError(t, env.service.DeleteGift(ctx, kid.ID, 12345))
}

func TestCreateKidOfType(t *testing.T) {
	env := newTestEnv(t, defaultExecutor())
	ctx := context.Background()

	kid, err := env.service.CreateKidOfType(ctx, "girl", map[string]string{
		"firstName":  "Ina",
		"lastName":   "Berg",
		"birthDate":  "2016-01-01",
		"skirtColor": "yellow",
	})
	require.NoError(t, err)
	assert.Equal(t, core.KidTypeGirl, kid.Type)
	assert.Equal(t, int64(0), kid.Version)

	got, err := env.service.GetKid(ctx, kid.ID)
	require.NoError(t, err)
	girl, ok := got.Girl()
	require.True(t, ok)
	assert.Equal(t, "yellow", girl.SkirtColor)

	_, err = env.service.CreateKidOfType(ctx, "dragon", map[string]string{})
	var verrs core.ValidationErrors
	assert.ErrorAs(t, err, &verrs)
}

func TestListKids_Pages(t *testing.T) {
	env := newTestEnv(t, defaultExecutor())
	ctx := context.Background()
	for _, name := range []string{"Ada", "Bo", "Cy", "Di", "Ed"} {
		env.createKid(t, name)
	}

	page, err := env.service.ListKids(ctx, core.PageRequest{Page: 2, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 3, page.TotalPages())
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Ed", page.Items[0].FirstName)
}

// batchRecorder wraps a store and records the size of every imported batch.
type batchRecorder struct {
	core.Store

	mu      sync.Mutex
	batches []int
}

func (r *batchRecorder) InTx(ctx context.Context, fn func(core.Tx) error) error {
	return r.Store.InTx(ctx, func(tx core.Tx) error {
		return fn(&recordingTx{Tx: tx, r: r})
	})
}

type recordingTx struct {
	core.Tx
	r *batchRecorder
}

func (t *recordingTx) InsertKidRows(ctx context.Context, rows []core.KidRow) (int64, error) {
	t.r.mu.Lock()
	t.r.batches = append(t.r.batches, len(rows))
	t.r.mu.Unlock()
	return t.Tx.InsertKidRows(ctx, rows)
}

func stageFile(t *testing.T, env *testEnv, content string) core.StagedFile {
	t.Helper()
	staged, err := core.NewImportStager(env.staging).Stage(context.Background(), strings.NewReader(content), "kids.csv")
	require.NoError(t, err)
	return staged
}

// Scenario: three rows with batch size two arrive as batches of two and one.
func TestImportWorker_Batches(t *testing.T) {
	env := newTestEnv(t, defaultExecutor())
	ctx := context.Background()
	rec := &batchRecorder{Store: env.store}

	before, err := env.store.CountKids(ctx)
	require.NoError(t, err)

	staged := stageFile(t, env, "first_name,last_name,birth_date\n"+
		"Ada,Lind,2010-01-01\n"+
		"Bo,Lind,2011-01-01\n"+
		"Cy,Lind,2012-01-01\n")
	job := core.NewImportJob(staged, 2)

	require.NoError(t, core.NewKidsImportWorker(rec, nil).Run(ctx, job, "test"))

	assert.Equal(t, []int{2, 1}, rec.batches)
	assert.Equal(t, int64(3), job.Rows())

	after, err := env.store.CountKids(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+3, after)

	_, err = os.Stat(staged.Path)
	assert.True(t, os.IsNotExist(err), "staged file still exists")
}

// Scenario: a malformed second row rolls back the whole file.
func TestImportWorker_MalformedRowRollsBack(t *testing.T) {
	env := newTestEnv(t, defaultExecutor())
	ctx := context.Background()

	before, err := env.store.CountKids(ctx)
	require.NoError(t, err)

	staged := stageFile(t, env, "first_name,last_name,birth_date\n"+
		"Ada,Lind,2010-01-01\n"+
		"Bo,Lind\n"+
		"Cy,Lind,2012-01-01\n")
	job := core.NewImportJob(staged, 1)

	err = core.NewKidsImportWorker(env.store, nil).Run(ctx, job, "test")
	require.ErrorIs(t, err, core.ErrImportFailed)

	var rowErr *core.RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 3, rowErr.Line)

	after, err := env.store.CountKids(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = os.Stat(staged.Path)
	assert.True(t, os.IsNotExist(err), "staged file still exists")
}

func TestImportKids_RunsInBackground(t *testing.T) {
	env := newTestEnv(t, defaultExecutor())
	ctx := context.Background()

	job, err := env.service.ImportKids(ctx,
		strings.NewReader("first_name,last_name,birth_date\nAda,Lind,2010-01-01\nBo,Lind,2011-01-01\n"),
		"kids.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "kids.csv", job.FileName)

	require.Eventually(t, func() bool {
		n, err := env.store.CountKids(ctx)
		return err == nil && n == 2
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return env.stagedFiles() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestImportKids_RejectedWhenSaturated(t *testing.T) {
	exec := defaultExecutor()
	exec.QueueCapacity = 1
	env := newTestEnv(t, exec)
	ctx := context.Background()
	body := "first_name,last_name,birth_date\nAda,Lind,2010-01-01\n"

	// Hold the write lock so the first job blocks inside its transaction.
	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- env.store.InTx(ctx, func(core.Tx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	_, err := env.service.ImportKids(ctx, strings.NewReader(body), "one.csv")
	require.NoError(t, err)
	_, err = env.service.ImportKids(ctx, strings.NewReader(body), "two.csv")
	require.NoError(t, err)

	_, err = env.service.ImportKids(ctx, strings.NewReader(body), "three.csv")
	assert.ErrorIs(t, err, core.ErrExecutorSaturated)
	assert.Equal(t, 2, env.stagedFiles(), "rejected upload left a staged file")

	close(release)
	require.NoError(t, <-done)

	require.Eventually(t, func() bool {
		n, err := env.store.CountKids(ctx)
		return err == nil && n == 2
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return env.stagedFiles() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestImportKids_ClosedAfterShutdown(t *testing.T) {
	env := newTestEnv(t, defaultExecutor())
	ctx := context.Background()

	require.NoError(t, env.service.Shutdown(ctx))

	_, err := env.service.ImportKids(ctx, strings.NewReader("h\n"), "late.csv")
	assert.ErrorIs(t, err, core.ErrExecutorClosed)
	assert.Equal(t, 0, env.stagedFiles())
}
