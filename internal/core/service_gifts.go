package core

import (
	"context"
	"fmt"
)

// GetGift returns a gift owned by the given kid.
func (s *Service) GetGift(ctx context.Context, kidID, giftID int64) (Gift, error) {
	return s.store.GetGift(ctx, kidID, giftID)
}

// ListGifts returns one page of a kid's gifts. Fails with ErrNotFound when
// the kid does not exist.
func (s *Service) ListGifts(ctx context.Context, kidID int64, page PageRequest) (Page[Gift], error) {
	if _, err := s.store.GetKid(ctx, kidID); err != nil {
		return Page[Gift]{}, err
	}

	page = page.Normalize()
	gifts, total, err := s.store.ListGifts(ctx, kidID, page)
	if err != nil {
		return Page[Gift]{}, fmt.Errorf("list gifts: %w", err)
	}
	return Page[Gift]{Items: gifts, Total: total, Page: page.Page, Size: page.Size}, nil
}

// CreateGift adds a gift to a kid under an exclusive lock on the kid row.
//
// The lock serializes every creation for the same kid, so the gift count
// read while holding it is exact: a kid never ends up with more than
// MaxGiftsPerKid gifts however many callers race. Fails with ErrNotFound,
// ErrLockTimeout or ErrTooManyGifts; only the last one is checked after
// the lock is held.
func (s *Service) CreateGift(ctx context.Context, kidID int64, cmd NewGift) (Gift, error) {
	if err := ValidateNewGift(cmd); err != nil {
		return Gift{}, s.observe("create_gift", err)
	}

	var created Gift
	err := s.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.LockKid(ctx, kidID); err != nil {
			return err
		}

		count, err := tx.CountGifts(ctx, kidID)
		if err != nil {
			return err
		}
		if count >= MaxGiftsPerKid {
			return fmt.Errorf("kid with id=%d already has %d gifts: %w", kidID, count, ErrTooManyGifts)
		}

		created, err = tx.InsertGift(ctx, Gift{
			KidID: kidID,
			Name:  cmd.Name,
			Price: cmd.Price,
		})
		return err
	})
	if err != nil {
		return Gift{}, s.observe("create_gift", fmt.Errorf("create gift: %w", err))
	}

	mutationLogger(ctx).Info("gift created", "kid_id", kidID, "gift_id", created.ID)
	return created, s.observe("create_gift", nil)
}

// UpdateGift applies patch to a gift with optimistic concurrency, scoped to
// the owning kid. See UpdateKid for the conflict rules.
func (s *Service) UpdateGift(ctx context.Context, kidID, giftID int64, patch GiftPatch) (Gift, error) {
	if err := ValidateGiftPatch(patch); err != nil {
		return Gift{}, s.observe("update_gift", err)
	}

	var updated Gift
	err := s.store.InTx(ctx, func(tx Tx) error {
		gift, err := tx.GetGift(ctx, kidID, giftID)
		if err != nil {
			return err
		}
		if patch.Version != nil && *patch.Version != gift.Version {
			return fmt.Errorf("gift with id=%d has version %d, request expected %d: %w",
				giftID, gift.Version, *patch.Version, ErrOptimisticConflict)
		}

		if patch.Name != nil {
			gift.Name = *patch.Name
		}
		if patch.Price != nil {
			gift.Price = *patch.Price
		}

		updated, err = tx.UpdateGift(ctx, gift)
		return err
	})
	if err != nil {
		return Gift{}, s.observe("update_gift", fmt.Errorf("update gift: %w", err))
	}

	mutationLogger(ctx).Info("gift updated", "kid_id", kidID, "gift_id", giftID, "version", updated.Version)
	return updated, s.observe("update_gift", nil)
}

// DeleteGift removes a gift owned by the kid. Deleting a missing gift is not an error.
func (s *Service) DeleteGift(ctx context.Context, kidID, giftID int64) error {
	err := s.store.InTx(ctx, func(tx Tx) error {
		return tx.DeleteGift(ctx, kidID, giftID)
	})
	if err != nil {
		return s.observe("delete_gift", fmt.Errorf("delete gift: %w", err))
	}

	mutationLogger(ctx).Info("gift deleted", "kid_id", kidID, "gift_id", giftID)
	return s.observe("delete_gift", nil)
}
