package web

import (
	"net/http"
)

// parseGiftPath reads the kid and gift ids from the path.
func parseGiftPath(r *http.Request) (kidID, giftID int64, err error) {
	if kidID, err = parseIDParam(r, "kidId"); err != nil {
		return 0, 0, err
	}
	if giftID, err = parseIDParam(r, "giftId"); err != nil {
		return 0, 0, err
	}
	return kidID, giftID, nil
}

// handleListGifts returns one page of a kid's gifts.
func (s *Server) handleListGifts(w http.ResponseWriter, r *http.Request) {
	kidID, err := parseIDParam(r, "kidId")
	if err != nil {
		respondError(w, r, err)
		return
	}

	page, err := s.service.ListGifts(r.Context(), kidID, parsePage(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(page, toGiftResponse))
}

// handleGetGift returns a single gift of a kid.
func (s *Server) handleGetGift(w http.ResponseWriter, r *http.Request) {
	kidID, giftID, err := parseGiftPath(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	gift, err := s.service.GetGift(r.Context(), kidID, giftID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGiftResponse(gift))
}

// handleCreateGift adds a gift under the kid lock.
func (s *Server) handleCreateGift(w http.ResponseWriter, r *http.Request) {
	kidID, err := parseIDParam(r, "kidId")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req GiftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	gift, err := s.service.CreateGift(ctx, kidID, req.toNewGift())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGiftResponse(gift))
}

// handleUpdateGift applies a partial update with optimistic concurrency.
func (s *Server) handleUpdateGift(w http.ResponseWriter, r *http.Request) {
	kidID, giftID, err := parseGiftPath(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req GiftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	gift, err := s.service.UpdateGift(ctx, kidID, giftID, req.toPatch())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGiftResponse(gift))
}

// handleDeleteGift removes a gift. Missing gifts are not an error.
func (s *Server) handleDeleteGift(w http.ResponseWriter, r *http.Request) {
	kidID, giftID, err := parseGiftPath(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	if err := s.service.DeleteGift(ctx, kidID, giftID); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
