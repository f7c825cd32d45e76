package core

import (
	"errors"
	"testing"
	"time"
)

// fixNow pins the validation clock for the duration of the test.
func fixNow(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func violationFields(err error) []string {
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, len(verrs))
	for i, v := range verrs {
		fields[i] = v.Field
	}
	return fields
}

func TestValidateNewKid(t *testing.T) {
	fixNow(t, time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC))

	tests := []struct {
		name       string
		kid        NewKid
		wantFields []string
	}{
		{
			name: "valid",
			kid:  NewKid{FirstName: "Tom", LastName: "Berg", BirthDate: time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC)},
		},
		{
			name:       "lower-case first name",
			kid:        NewKid{FirstName: "tom", LastName: "Berg", BirthDate: time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC)},
			wantFields: []string{"firstName"},
		},
		{
			name:       "single letter last name",
			kid:        NewKid{FirstName: "Tom", LastName: "B", BirthDate: time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC)},
			wantFields: []string{"lastName"},
		},
		{
			name:       "name longer than twenty letters",
			kid:        NewKid{FirstName: "Abcdefghijklmnopqrstu", LastName: "Berg", BirthDate: time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC)},
			wantFields: []string{"firstName"},
		},
		{
			name:       "born today",
			kid:        NewKid{FirstName: "Tom", LastName: "Berg", BirthDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
			wantFields: []string{"birthDate"},
		},
		{
			name:       "every field wrong",
			kid:        NewKid{FirstName: "", LastName: "berg"},
			wantFields: []string{"firstName", "lastName", "birthDate"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := violationFields(ValidateNewKid(tt.kid))
			if len(got) != len(tt.wantFields) {
				t.Fatalf("violations = %v, want %v", got, tt.wantFields)
			}
			for i := range got {
				if got[i] != tt.wantFields[i] {
					t.Errorf("violation[%d] = %q, want %q", i, got[i], tt.wantFields[i])
				}
			}
		})
	}
}

func TestValidateKidPatch(t *testing.T) {
	fixNow(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	if err := ValidateKidPatch(KidPatch{}); err != nil {
		t.Errorf("empty patch error = %v", err)
	}

	bad := "x"
	if got := violationFields(ValidateKidPatch(KidPatch{LastName: &bad})); len(got) != 1 || got[0] != "lastName" {
		t.Errorf("violations = %v, want [lastName]", got)
	}

	future := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := violationFields(ValidateKidPatch(KidPatch{BirthDate: &future})); len(got) != 1 || got[0] != "birthDate" {
		t.Errorf("violations = %v, want [birthDate]", got)
	}
}

func TestValidateGift(t *testing.T) {
	if err := ValidateNewGift(NewGift{Name: "Kite", Price: 9.99}); err != nil {
		t.Errorf("ValidateNewGift() error = %v", err)
	}

	got := violationFields(ValidateNewGift(NewGift{Name: "  ", Price: 0}))
	if len(got) != 2 || got[0] != "name" || got[1] != "price" {
		t.Errorf("violations = %v, want [name price]", got)
	}

	negative := -1.0
	if got := violationFields(ValidateGiftPatch(GiftPatch{Price: &negative})); len(got) != 1 || got[0] != "price" {
		t.Errorf("patch violations = %v, want [price]", got)
	}
}
