package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/giftapi/internal/core"
)

// querier is satisfied by *sql.DB and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const kidColumns = `id, kid_type, first_name, last_name, birth_date, pants_length, skirt_color, version`

const giftColumns = `id, kid_id, name, price, version`

type scanner interface {
	Scan(dest ...any) error
}

// queries implements core.Queries on a pool or a transaction connection.
type queries struct {
	q querier
}

func scanKid(row scanner) (core.Kid, error) {
	var (
		k       core.Kid
		kidType string
		birth   string
		pants   sql.NullInt64
		skirt   sql.NullString
	)
	if err := row.Scan(&k.ID, &kidType, &k.FirstName, &k.LastName, &birth, &pants, &skirt, &k.Version); err != nil {
		return core.Kid{}, err
	}

	bd, err := time.Parse(core.DateLayout, birth)
	if err != nil {
		return core.Kid{}, fmt.Errorf("kid %d: parse birth_date %q: %w", k.ID, birth, err)
	}
	k.BirthDate = bd
	k.Type = core.KidType(kidType)

	switch k.Type {
	case core.KidTypeBoy:
		k.Details = core.BoyDetails{PantsLength: int(pants.Int64)}
	case core.KidTypeGirl:
		k.Details = core.GirlDetails{SkirtColor: skirt.String}
	}
	return k, nil
}

func scanGift(row scanner) (core.Gift, error) {
	var g core.Gift
	err := row.Scan(&g.ID, &g.KidID, &g.Name, &g.Price, &g.Version)
	return g, err
}

func (q queries) GetKid(ctx context.Context, id int64) (core.Kid, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+kidColumns+` FROM kid WHERE id = ?`, id)
	kid, err := scanKid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Kid{}, fmt.Errorf("kid with id=%d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Kid{}, mapErr(err, "get kid")
	}
	return kid, nil
}

func (q queries) ListKids(ctx context.Context, page core.PageRequest) ([]core.Kid, int64, error) {
	total, err := q.CountKids(ctx)
	if err != nil {
		return nil, 0, err
	}

	rows, err := q.q.QueryContext(ctx,
		`SELECT `+kidColumns+` FROM kid ORDER BY id LIMIT ? OFFSET ?`,
		page.Size, page.Offset())
	if err != nil {
		return nil, 0, mapErr(err, "list kids")
	}
	defer rows.Close()

	kids := make([]core.Kid, 0, page.Size)
	for rows.Next() {
		kid, err := scanKid(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan kid: %w", err)
		}
		kids = append(kids, kid)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapErr(err, "list kids")
	}
	return kids, total, nil
}

func (q queries) CountKids(ctx context.Context) (int64, error) {
	var n int64
	if err := q.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM kid`).Scan(&n); err != nil {
		return 0, mapErr(err, "count kids")
	}
	return n, nil
}

func (q queries) GetGift(ctx context.Context, kidID, giftID int64) (core.Gift, error) {
	row := q.q.QueryRowContext(ctx,
		`SELECT `+giftColumns+` FROM gift WHERE id = ? AND kid_id = ?`, giftID, kidID)
	gift, err := scanGift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Gift{}, fmt.Errorf("gift with id=%d of kid %d: %w", giftID, kidID, core.ErrNotFound)
	}
	if err != nil {
		return core.Gift{}, mapErr(err, "get gift")
	}
	return gift, nil
}

func (q queries) ListGifts(ctx context.Context, kidID int64, page core.PageRequest) ([]core.Gift, int64, error) {
	total, err := q.CountGifts(ctx, kidID)
	if err != nil {
		return nil, 0, err
	}

	rows, err := q.q.QueryContext(ctx,
		`SELECT `+giftColumns+` FROM gift WHERE kid_id = ? ORDER BY id LIMIT ? OFFSET ?`,
		kidID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, mapErr(err, "list gifts")
	}
	defer rows.Close()

	gifts := make([]core.Gift, 0, min(page.Size, core.MaxGiftsPerKid))
	for rows.Next() {
		gift, err := scanGift(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan gift: %w", err)
		}
		gifts = append(gifts, gift)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapErr(err, "list gifts")
	}
	return gifts, total, nil
}

func (q queries) CountGifts(ctx context.Context, kidID int64) (int64, error) {
	var n int64
	err := q.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM gift WHERE kid_id = ?`, kidID).Scan(&n)
	if err != nil {
		return 0, mapErr(err, "count gifts")
	}
	return n, nil
}
