package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/giftapi/internal/core"
)

// tx is a core.Tx on an open pgx transaction.
type tx struct {
	queries
	tx          pgx.Tx
	lockTimeout time.Duration
}

// LockKid selects the kid FOR UPDATE after bounding the lock wait with a
// transaction-local lock_timeout.
func (t *tx) LockKid(ctx context.Context, id int64) (core.Kid, error) {
	timeout := fmt.Sprintf("%dms", t.lockTimeout.Milliseconds())
	if _, err := t.tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
		return core.Kid{}, mapErr(err, "set lock timeout")
	}

	kid, err := scanKid(t.tx.QueryRow(ctx, `SELECT `+kidColumns+` FROM kid WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Kid{}, fmt.Errorf("kid with id=%d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Kid{}, mapErr(err, fmt.Sprintf("lock kid %d", id))
	}
	return kid, nil
}

// detailColumns returns the nullable payload columns of kid.
func detailColumns(kid core.Kid) (pants *int32, skirt *string) {
	if d, ok := kid.Boy(); ok {
		v := int32(d.PantsLength)
		pants = &v
	}
	if d, ok := kid.Girl(); ok {
		skirt = &d.SkirtColor
	}
	return pants, skirt
}

func (t *tx) InsertKid(ctx context.Context, kid core.Kid) (core.Kid, error) {
	if kid.Type == "" {
		kid.Type = core.KidTypeKid
	}
	pants, skirt := detailColumns(kid)

	err := t.tx.QueryRow(ctx,
		`INSERT INTO kid (kid_type, first_name, last_name, birth_date, pants_length, skirt_color, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		string(kid.Type), kid.FirstName, kid.LastName, kid.BirthDate, pants, skirt, kid.Version,
	).Scan(&kid.ID)
	if err != nil {
		return core.Kid{}, mapErr(err, "insert kid")
	}
	return kid, nil
}

func (t *tx) UpdateKid(ctx context.Context, kid core.Kid) (core.Kid, error) {
	pants, skirt := detailColumns(kid)

	err := t.tx.QueryRow(ctx,
		`UPDATE kid
		 SET first_name = $1, last_name = $2, birth_date = $3, pants_length = $4, skirt_color = $5,
		     version = version + 1
		 WHERE id = $6 AND version = $7
		 RETURNING version`,
		kid.FirstName, kid.LastName, kid.BirthDate, pants, skirt, kid.ID, kid.Version,
	).Scan(&kid.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Kid{}, t.missedUpdate(ctx, "kid", kid.ID, kid.Version)
	}
	if err != nil {
		return core.Kid{}, mapErr(err, "update kid")
	}
	return kid, nil
}

func (t *tx) DeleteKid(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM kid WHERE id = $1`, id); err != nil {
		return mapErr(err, "delete kid")
	}
	return nil
}

func (t *tx) InsertGift(ctx context.Context, gift core.Gift) (core.Gift, error) {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO gift (kid_id, name, price, version) VALUES ($1, $2, $3, $4) RETURNING id`,
		gift.KidID, gift.Name, gift.Price, gift.Version,
	).Scan(&gift.ID)
	if err != nil {
		return core.Gift{}, mapErr(err, "insert gift")
	}
	return gift, nil
}

func (t *tx) UpdateGift(ctx context.Context, gift core.Gift) (core.Gift, error) {
	err := t.tx.QueryRow(ctx,
		`UPDATE gift SET name = $1, price = $2, version = version + 1
		 WHERE id = $3 AND kid_id = $4 AND version = $5
		 RETURNING version`,
		gift.Name, gift.Price, gift.ID, gift.KidID, gift.Version,
	).Scan(&gift.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Gift{}, t.missedUpdate(ctx, "gift", gift.ID, gift.Version)
	}
	if err != nil {
		return core.Gift{}, mapErr(err, "update gift")
	}
	return gift, nil
}

func (t *tx) DeleteGift(ctx context.Context, kidID, giftID int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM gift WHERE id = $1 AND kid_id = $2`, giftID, kidID); err != nil {
		return mapErr(err, "delete gift")
	}
	return nil
}

func (t *tx) DeleteGiftsByKid(ctx context.Context, kidID int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM gift WHERE kid_id = $1`, kidID)
	if err != nil {
		return 0, mapErr(err, "delete gifts")
	}
	return tag.RowsAffected(), nil
}

// InsertKidRows streams rows into the kid table with COPY.
func (t *tx) InsertKidRows(ctx context.Context, rows []core.KidRow) (int64, error) {
	src := make([][]interface{}, len(rows))
	for i, r := range rows {
		src[i] = []interface{}{string(core.KidTypeKid), r.FirstName, r.LastName, r.BirthDate, int64(0)}
	}

	n, err := t.tx.CopyFrom(
		ctx,
		pgx.Identifier{"kid"},
		[]string{"kid_type", "first_name", "last_name", "birth_date", "version"},
		pgx.CopyFromRows(src),
	)
	if err != nil {
		return 0, mapErr(err, "copy kid rows")
	}
	return n, nil
}

// missedUpdate explains a versioned update that matched no row.
func (t *tx) missedUpdate(ctx context.Context, table string, id, version int64) error {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return mapErr(err, "update "+table)
	}
	if !exists {
		return fmt.Errorf("%s with id=%d: %w", table, id, core.ErrNotFound)
	}
	return fmt.Errorf("%s with id=%d no longer has version %d: %w", table, id, version, core.ErrOptimisticConflict)
}
