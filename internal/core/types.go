package core

import (
	"context"
	"math"
	"time"
)

// KidType is the discriminator stored with every kid row.
type KidType string

const (
	KidTypeKid  KidType = "KID"
	KidTypeBoy  KidType = "BOY"
	KidTypeGirl KidType = "GIRL"
)

// MaxGiftsPerKid is the number of gifts a single kid may own.
const MaxGiftsPerKid = 3

// DateLayout is the ISO date format used for birth dates on the wire and in import files.
const DateLayout = "2006-01-02"

// Kid is the parent record. Details holds the payload for BOY and GIRL kids
// and is nil for plain kids.
type Kid struct {
	ID        int64
	Type      KidType
	FirstName string
	LastName  string
	BirthDate time.Time
	Version   int64
	Details   KidDetails
}

// KidDetails is the type-specific part of a kid.
type KidDetails interface {
	kidType() KidType
}

// BoyDetails carries the BOY payload.
type BoyDetails struct {
	PantsLength int
}

func (BoyDetails) kidType() KidType { return KidTypeBoy }

// GirlDetails carries the GIRL payload.
type GirlDetails struct {
	SkirtColor string
}

func (GirlDetails) kidType() KidType { return KidTypeGirl }

// Boy returns the BOY payload if the kid has one.
func (k Kid) Boy() (BoyDetails, bool) {
	d, ok := k.Details.(BoyDetails)
	return d, ok
}

// Girl returns the GIRL payload if the kid has one.
func (k Kid) Girl() (GirlDetails, bool) {
	d, ok := k.Details.(GirlDetails)
	return d, ok
}

// Gift is the child record. KidID is fixed at creation.
type Gift struct {
	ID      int64
	KidID   int64
	Name    string
	Price   float64
	Version int64
}

// NewKid holds the fields needed to create a plain kid.
type NewKid struct {
	FirstName string
	LastName  string
	BirthDate time.Time
}

// KidPatch describes a partial kid update. Nil fields are left unchanged.
// Version, when set, must equal the stored version or the update is rejected.
type KidPatch struct {
	FirstName *string
	LastName  *string
	BirthDate *time.Time
	Version   *int64
}

// NewGift holds the fields needed to add a gift to a kid.
type NewGift struct {
	Name  string
	Price float64
}

// GiftPatch describes a partial gift update. Nil fields are left unchanged.
type GiftPatch struct {
	Name    *string
	Price   *float64
	Version *int64
}

// KidRow is one data line of an import file.
type KidRow struct {
	FirstName string
	LastName  string
	BirthDate time.Time
}

// Paging defaults.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPage keeps Page*Size within a 32-bit OFFSET.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// PageRequest selects a zero-based page of results.
type PageRequest struct {
	Page int
	Size int
}

// Normalize clamps the request to valid bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	return p
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Page is one page of query results.
type Page[T any] struct {
	Items []T
	Total int64
	Page  int
	Size  int
}

// TotalPages returns the number of pages needed to hold Total items.
func (p Page[T]) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Size) - 1) / int64(p.Size))
}

// Queries are the read operations shared by a Store and an open Tx.
type Queries interface {
	GetKid(ctx context.Context, id int64) (Kid, error)
	ListKids(ctx context.Context, page PageRequest) ([]Kid, int64, error)
	CountKids(ctx context.Context) (int64, error)
	GetGift(ctx context.Context, kidID, giftID int64) (Gift, error)
	ListGifts(ctx context.Context, kidID int64, page PageRequest) ([]Gift, int64, error)
	CountGifts(ctx context.Context, kidID int64) (int64, error)
}

// Tx is a write transaction on the record store.
//
// Lookups return errors wrapping ErrNotFound when the row is absent.
// UpdateKid and UpdateGift compare the Version of their argument with the
// stored version and fail with ErrOptimisticConflict on mismatch; on success
// the returned record carries the incremented version.
type Tx interface {
	Queries

	// LockKid takes an exclusive lock on the kid row, waiting at most the
	// store's lock timeout. Fails with ErrNotFound or ErrLockTimeout.
	LockKid(ctx context.Context, id int64) (Kid, error)

	InsertKid(ctx context.Context, kid Kid) (Kid, error)
	UpdateKid(ctx context.Context, kid Kid) (Kid, error)
	DeleteKid(ctx context.Context, id int64) error

	InsertGift(ctx context.Context, gift Gift) (Gift, error)
	UpdateGift(ctx context.Context, gift Gift) (Gift, error)
	DeleteGift(ctx context.Context, kidID, giftID int64) error
	DeleteGiftsByKid(ctx context.Context, kidID int64) (int64, error)

	// InsertKidRows inserts one batch of imported rows as plain kids with version 0.
	InsertKidRows(ctx context.Context, rows []KidRow) (int64, error)
}

// Store is the persistent record store.
type Store interface {
	Queries

	// InTx runs fn inside a transaction. The transaction commits when fn
	// returns nil and rolls back on any error or panic.
	InTx(ctx context.Context, fn func(Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}
