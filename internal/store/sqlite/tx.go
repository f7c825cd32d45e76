package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JonMunkholm/giftapi/internal/core"
)

// tx is a core.Tx on a connection that holds the database write lock.
type tx struct {
	queries
	conn *sql.Conn
}

// LockKid returns the kid. BEGIN IMMEDIATE already holds the write lock,
// so no further locking is needed.
func (t *tx) LockKid(ctx context.Context, id int64) (core.Kid, error) {
	return t.GetKid(ctx, id)
}

// detailColumns returns the nullable payload columns of kid.
func detailColumns(kid core.Kid) (pants, skirt any) {
	if d, ok := kid.Boy(); ok {
		pants = d.PantsLength
	}
	if d, ok := kid.Girl(); ok {
		skirt = d.SkirtColor
	}
	return pants, skirt
}

func (t *tx) InsertKid(ctx context.Context, kid core.Kid) (core.Kid, error) {
	if kid.Type == "" {
		kid.Type = core.KidTypeKid
	}
	pants, skirt := detailColumns(kid)

	res, err := t.conn.ExecContext(ctx,
		`INSERT INTO kid (kid_type, first_name, last_name, birth_date, pants_length, skirt_color, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(kid.Type), kid.FirstName, kid.LastName, kid.BirthDate.Format(core.DateLayout),
		pants, skirt, kid.Version)
	if err != nil {
		return core.Kid{}, mapErr(err, "insert kid")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Kid{}, fmt.Errorf("insert kid: %w", err)
	}
	kid.ID = id
	return kid, nil
}

func (t *tx) UpdateKid(ctx context.Context, kid core.Kid) (core.Kid, error) {
	pants, skirt := detailColumns(kid)

	res, err := t.conn.ExecContext(ctx,
		`UPDATE kid
		 SET first_name = ?, last_name = ?, birth_date = ?, pants_length = ?, skirt_color = ?,
		     version = version + 1
		 WHERE id = ? AND version = ?`,
		kid.FirstName, kid.LastName, kid.BirthDate.Format(core.DateLayout), pants, skirt,
		kid.ID, kid.Version)
	if err != nil {
		return core.Kid{}, mapErr(err, "update kid")
	}
	if err := t.checkUpdated(ctx, res, "kid", kid.ID, kid.Version); err != nil {
		return core.Kid{}, err
	}
	kid.Version++
	return kid, nil
}

func (t *tx) DeleteKid(ctx context.Context, id int64) error {
	if _, err := t.conn.ExecContext(ctx, `DELETE FROM kid WHERE id = ?`, id); err != nil {
		return mapErr(err, "delete kid")
	}
	return nil
}

func (t *tx) InsertGift(ctx context.Context, gift core.Gift) (core.Gift, error) {
	res, err := t.conn.ExecContext(ctx,
		`INSERT INTO gift (kid_id, name, price, version) VALUES (?, ?, ?, ?)`,
		gift.KidID, gift.Name, gift.Price, gift.Version)
	if err != nil {
		return core.Gift{}, mapErr(err, "insert gift")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Gift{}, fmt.Errorf("insert gift: %w", err)
	}
	gift.ID = id
	return gift, nil
}

func (t *tx) UpdateGift(ctx context.Context, gift core.Gift) (core.Gift, error) {
	res, err := t.conn.ExecContext(ctx,
		`UPDATE gift SET name = ?, price = ?, version = version + 1
		 WHERE id = ? AND kid_id = ? AND version = ?`,
		gift.Name, gift.Price, gift.ID, gift.KidID, gift.Version)
	if err != nil {
		return core.Gift{}, mapErr(err, "update gift")
	}
	if err := t.checkUpdated(ctx, res, "gift", gift.ID, gift.Version); err != nil {
		return core.Gift{}, err
	}
	gift.Version++
	return gift, nil
}

func (t *tx) DeleteGift(ctx context.Context, kidID, giftID int64) error {
	_, err := t.conn.ExecContext(ctx, `DELETE FROM gift WHERE id = ? AND kid_id = ?`, giftID, kidID)
	if err != nil {
		return mapErr(err, "delete gift")
	}
	return nil
}

func (t *tx) DeleteGiftsByKid(ctx context.Context, kidID int64) (int64, error) {
	res, err := t.conn.ExecContext(ctx, `DELETE FROM gift WHERE kid_id = ?`, kidID)
	if err != nil {
		return 0, mapErr(err, "delete gifts")
	}
	return res.RowsAffected()
}

// InsertKidRows inserts rows through one prepared statement.
func (t *tx) InsertKidRows(ctx context.Context, rows []core.KidRow) (int64, error) {
	stmt, err := t.conn.PrepareContext(ctx,
		`INSERT INTO kid (kid_type, first_name, last_name, birth_date, version) VALUES ('KID', ?, ?, ?, 0)`)
	if err != nil {
		return 0, mapErr(err, "prepare kid insert")
	}
	defer stmt.Close()

	var n int64
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.FirstName, r.LastName, r.BirthDate.Format(core.DateLayout)); err != nil {
			return n, mapErr(err, "insert kid row")
		}
		n++
	}
	return n, nil
}

// checkUpdated turns a zero-row versioned update into ErrNotFound when the
// row is gone, or ErrOptimisticConflict when its version moved on.
func (t *tx) checkUpdated(ctx context.Context, res sql.Result, table string, id, version int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = t.conn.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%s with id=%d: %w", table, id, core.ErrNotFound)
	}
	if err != nil {
		return mapErr(err, "update "+table)
	}
	return fmt.Errorf("%s with id=%d no longer has version %d: %w", table, id, version, core.ErrOptimisticConflict)
}
