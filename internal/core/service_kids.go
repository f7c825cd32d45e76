package core

import (
	"context"
	"fmt"
)

// GetKid returns a kid by id.
func (s *Service) GetKid(ctx context.Context, id int64) (Kid, error) {
	return s.store.GetKid(ctx, id)
}

// ListKids returns one page of kids ordered by id.
func (s *Service) ListKids(ctx context.Context, page PageRequest) (Page[Kid], error) {
	page = page.Normalize()
	kids, total, err := s.store.ListKids(ctx, page)
	if err != nil {
		return Page[Kid]{}, fmt.Errorf("list kids: %w", err)
	}
	return Page[Kid]{Items: kids, Total: total, Page: page.Page, Size: page.Size}, nil
}

// CountKids returns the number of stored kids.
func (s *Service) CountKids(ctx context.Context) (int64, error) {
	return s.store.CountKids(ctx)
}

// CreateKid validates and stores a plain kid with version 0.
func (s *Service) CreateKid(ctx context.Context, cmd NewKid) (Kid, error) {
	kid := Kid{
		Type:      KidTypeKid,
		FirstName: cmd.FirstName,
		LastName:  cmd.LastName,
		BirthDate: cmd.BirthDate,
	}
	kid, err := s.insertKid(ctx, kid)
	return kid, s.observe("create_kid", err)
}

// CreateKidOfType builds a kid through the registered constructor for
// kidType and stores it.
func (s *Service) CreateKidOfType(ctx context.Context, kidType string, params map[string]string) (Kid, error) {
	kid, err := s.kidTypes.Build(kidType, params)
	if err != nil {
		return Kid{}, s.observe("create_kid", err)
	}
	kid, err = s.insertKid(ctx, kid)
	return kid, s.observe("create_kid", err)
}

func (s *Service) insertKid(ctx context.Context, kid Kid) (Kid, error) {
	if err := ValidateNewKid(NewKid{
		FirstName: kid.FirstName,
		LastName:  kid.LastName,
		BirthDate: kid.BirthDate,
	}); err != nil {
		return Kid{}, err
	}
	kid.Version = 0

	var created Kid
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		created, err = tx.InsertKid(ctx, kid)
		return err
	})
	if err != nil {
		return Kid{}, fmt.Errorf("create kid: %w", err)
	}

	mutationLogger(ctx).Info("kid created",
		"kid_id", created.ID,
		"type", created.Type,
		"last_name", created.LastName,
	)
	return created, nil
}

// UpdateKid applies patch with optimistic concurrency. The kid is read with
// its version, patched, and written back only if the stored version is
// unchanged; otherwise ErrOptimisticConflict is returned and nothing is
// written. A patch carrying a Version older than the stored one is rejected
// the same way.
func (s *Service) UpdateKid(ctx context.Context, id int64, patch KidPatch) (Kid, error) {
	if err := ValidateKidPatch(patch); err != nil {
		return Kid{}, s.observe("update_kid", err)
	}

	var updated Kid
	err := s.store.InTx(ctx, func(tx Tx) error {
		kid, err := tx.GetKid(ctx, id)
		if err != nil {
			return err
		}
		if patch.Version != nil && *patch.Version != kid.Version {
			return fmt.Errorf("kid with id=%d has version %d, request expected %d: %w",
				id, kid.Version, *patch.Version, ErrOptimisticConflict)
		}

		if patch.FirstName != nil {
			kid.FirstName = *patch.FirstName
		}
		if patch.LastName != nil {
			kid.LastName = *patch.LastName
		}
		if patch.BirthDate != nil {
			kid.BirthDate = *patch.BirthDate
		}

		updated, err = tx.UpdateKid(ctx, kid)
		return err
	})
	if err != nil {
		return Kid{}, s.observe("update_kid", fmt.Errorf("update kid: %w", err))
	}

	mutationLogger(ctx).Info("kid updated", "kid_id", id, "version", updated.Version)
	return updated, s.observe("update_kid", nil)
}

// DeleteKid removes all gifts of the kid and then the kid itself in one
// transaction. Deleting a missing kid is not an error.
func (s *Service) DeleteKid(ctx context.Context, id int64) error {
	var gifts int64
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		gifts, err = tx.DeleteGiftsByKid(ctx, id)
		if err != nil {
			return err
		}
		return tx.DeleteKid(ctx, id)
	})
	if err != nil {
		return s.observe("delete_kid", fmt.Errorf("delete kid: %w", err))
	}

	mutationLogger(ctx).Info("kid deleted", "kid_id", id, "gifts_deleted", gifts)
	return s.observe("delete_kid", nil)
}
