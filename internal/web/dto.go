package web

import (
	"time"

	"github.com/JonMunkholm/giftapi/internal/core"
)

// KidResponse is the JSON form of a kid.
type KidResponse struct {
	ID          int64   `json:"id"`
	Type        string  `json:"type"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	BirthDate   string  `json:"birthDate"`
	Version     int64   `json:"version"`
	PantsLength *int    `json:"pantsLength,omitempty"`
	SkirtColor  *string `json:"skirtColor,omitempty"`
}

func toKidResponse(k core.Kid) KidResponse {
	resp := KidResponse{
		ID:        k.ID,
		Type:      string(k.Type),
		FirstName: k.FirstName,
		LastName:  k.LastName,
		BirthDate: k.BirthDate.Format(core.DateLayout),
		Version:   k.Version,
	}
	if d, ok := k.Boy(); ok {
		resp.PantsLength = &d.PantsLength
	}
	if d, ok := k.Girl(); ok {
		resp.SkirtColor = &d.SkirtColor
	}
	return resp
}

// GiftResponse is the JSON form of a gift.
type GiftResponse struct {
	ID      int64   `json:"id"`
	KidID   int64   `json:"kidId"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	Version int64   `json:"version"`
}

func toGiftResponse(g core.Gift) GiftResponse {
	return GiftResponse{
		ID:      g.ID,
		KidID:   g.KidID,
		Name:    g.Name,
		Price:   g.Price,
		Version: g.Version,
	}
}

// PageResponse is one page of a collection.
type PageResponse[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

func toPageResponse[S, T any](p core.Page[S], convert func(S) T) PageResponse[T] {
	content := make([]T, len(p.Items))
	for i, item := range p.Items {
		content[i] = convert(item)
	}
	return PageResponse[T]{
		Content:       content,
		Page:          p.Page,
		Size:          p.Size,
		TotalElements: p.Total,
		TotalPages:    p.TotalPages(),
	}
}

// KidRequest is the body of kid create and update requests.
// On update, absent fields are left unchanged.
type KidRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	BirthDate *string `json:"birthDate"`
	Version   *int64  `json:"version"`
}

// parseBirthDate parses an optional ISO date field.
func parseBirthDate(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := time.Parse(core.DateLayout, *raw)
	if err != nil {
		return nil, core.ValidationErrors{{
			Field:   "birthDate",
			Value:   *raw,
			Message: "invalid date, expected yyyy-MM-dd",
		}}
	}
	return &d, nil
}

func (req KidRequest) toNewKid() (core.NewKid, error) {
	bd, err := parseBirthDate(req.BirthDate)
	if err != nil {
		return core.NewKid{}, err
	}
	cmd := core.NewKid{}
	if req.FirstName != nil {
		cmd.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		cmd.LastName = *req.LastName
	}
	if bd != nil {
		cmd.BirthDate = *bd
	}
	return cmd, nil
}

func (req KidRequest) toPatch() (core.KidPatch, error) {
	bd, err := parseBirthDate(req.BirthDate)
	if err != nil {
		return core.KidPatch{}, err
	}
	return core.KidPatch{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		BirthDate: bd,
		Version:   req.Version,
	}, nil
}

// GiftRequest is the body of gift create and update requests.
// On update, absent fields are left unchanged.
type GiftRequest struct {
	Name    *string  `json:"name"`
	Price   *float64 `json:"price"`
	Version *int64   `json:"version"`
}

func (req GiftRequest) toNewGift() core.NewGift {
	cmd := core.NewGift{}
	if req.Name != nil {
		cmd.Name = *req.Name
	}
	if req.Price != nil {
		cmd.Price = *req.Price
	}
	return cmd
}

func (req GiftRequest) toPatch() core.GiftPatch {
	return core.GiftPatch{Name: req.Name, Price: req.Price, Version: req.Version}
}

// StrategyRequest creates a kid through the kid-type registry.
type StrategyRequest struct {
	Type   string            `json:"type"`
	Params map[string]string `json:"params"`
}

// UploadResponse acknowledges an accepted import file.
type UploadResponse struct {
	JobID    string `json:"jobId"`
	FileName string `json:"fileName"`
	Status   string `json:"status"`
}
