package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/giftapi/internal/core"
)

const kidColumns = `id, kid_type, first_name, last_name, birth_date, pants_length, skirt_color, version`

const giftColumns = `id, kid_id, name, price, version`

// queries implements core.Queries on a pool or a transaction.
type queries struct {
	db DBTX
}

func scanKid(row pgx.Row) (core.Kid, error) {
	var (
		k       core.Kid
		kidType string
		birth   time.Time
		pants   *int32
		skirt   *string
	)
	if err := row.Scan(&k.ID, &kidType, &k.FirstName, &k.LastName, &birth, &pants, &skirt, &k.Version); err != nil {
		return core.Kid{}, err
	}
	k.Type = core.KidType(kidType)
	k.BirthDate = birth.UTC()

	switch k.Type {
	case core.KidTypeBoy:
		d := core.BoyDetails{}
		if pants != nil {
			d.PantsLength = int(*pants)
		}
		k.Details = d
	case core.KidTypeGirl:
		d := core.GirlDetails{}
		if skirt != nil {
			d.SkirtColor = *skirt
		}
		k.Details = d
	}
	return k, nil
}

func scanGift(row pgx.Row) (core.Gift, error) {
	var g core.Gift
	err := row.Scan(&g.ID, &g.KidID, &g.Name, &g.Price, &g.Version)
	return g, err
}

func (q queries) GetKid(ctx context.Context, id int64) (core.Kid, error) {
	kid, err := scanKid(q.db.QueryRow(ctx, `SELECT `+kidColumns+` FROM kid WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
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

	rows, err := q.db.Query(ctx,
		`SELECT `+kidColumns+` FROM kid ORDER BY id LIMIT $1 OFFSET $2`,
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
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM kid`).Scan(&n); err != nil {
		return 0, mapErr(err, "count kids")
	}
	return n, nil
}

func (q queries) GetGift(ctx context.Context, kidID, giftID int64) (core.Gift, error) {
	gift, err := scanGift(q.db.QueryRow(ctx,
		`SELECT `+giftColumns+` FROM gift WHERE id = $1 AND kid_id = $2`, giftID, kidID))
	if errors.Is(err, pgx.ErrNoRows) {
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

	rows, err := q.db.Query(ctx,
		`SELECT `+giftColumns+` FROM gift WHERE kid_id = $1 ORDER BY id LIMIT $2 OFFSET $3`,
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
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM gift WHERE kid_id = $1`, kidID).Scan(&n)
	if err != nil {
		return 0, mapErr(err, "count gifts")
	}
	return n, nil
}
