package web

import (
	"net/http"
)

// handleListKids returns one page of kids.
func (s *Server) handleListKids(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.ListKids(r.Context(), parsePage(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(page, toKidResponse))
}

// handleGetKid returns a single kid.
func (s *Server) handleGetKid(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "kidId")
	if err != nil {
		respondError(w, r, err)
		return
	}

	kid, err := s.service.GetKid(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toKidResponse(kid))
}

// handleCreateKid creates a plain kid.
func (s *Server) handleCreateKid(w http.ResponseWriter, r *http.Request) {
	var req KidRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	cmd, err := req.toNewKid()
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	kid, err := s.service.CreateKid(ctx, cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toKidResponse(kid))
}

// handleUpdateKid applies a partial update with optimistic concurrency.
func (s *Server) handleUpdateKid(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "kidId")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req KidRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	kid, err := s.service.UpdateKid(ctx, id, patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toKidResponse(kid))
}

// handleDeleteKid removes a kid and its gifts. Missing kids are not an error.
func (s *Server) handleDeleteKid(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "kidId")
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	if err := s.service.DeleteKid(ctx, id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCreateKidOfType creates a kid through the registered constructor for the given type.
func (s *Server) handleCreateKidOfType(w http.ResponseWriter, r *http.Request) {
	var req StrategyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	kid, err := s.service.CreateKidOfType(ctx, req.Type, req.Params)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toKidResponse(kid))
}

// handleListKidTypes returns the registered kid type tags in sorted order.
func (s *Server) handleListKidTypes(w http.ResponseWriter, r *http.Request) {
	types := s.service.KidTypes().Types()
	tags := make([]string, len(types))
	for i, t := range types {
		tags[i] = string(t)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"types": tags})
}
