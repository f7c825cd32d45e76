package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// KidConstructor builds an unsaved kid of one type from string parameters.
type KidConstructor func(params map[string]string) (Kid, error)

// KidTypeRegistry maps a kid type tag to its constructor.
//
// A registry is filled once at startup and then handed to the Service;
// it must not be modified after that, which is why it carries no lock.
type KidTypeRegistry struct {
	constructors map[KidType]KidConstructor
}

// NewKidTypeRegistry returns an empty registry.
func NewKidTypeRegistry() *KidTypeRegistry {
	return &KidTypeRegistry{constructors: make(map[KidType]KidConstructor)}
}

// DefaultKidTypes returns a registry with the KID, BOY and GIRL constructors.
func DefaultKidTypes() *KidTypeRegistry {
	r := NewKidTypeRegistry()
	r.Register(KidTypeKid, newPlainKid)
	r.Register(KidTypeBoy, newBoy)
	r.Register(KidTypeGirl, newGirl)
	return r
}

// Register adds a constructor for a type tag.
// Panics if the tag is already registered.
func (r *KidTypeRegistry) Register(t KidType, c KidConstructor) {
	if _, exists := r.constructors[t]; exists {
		panic(fmt.Sprintf("kid type already registered: %s", t))
	}
	r.constructors[t] = c
}

// Get returns the constructor for a tag. Tags are matched case-insensitively.
func (r *KidTypeRegistry) Get(tag string) (KidConstructor, bool) {
	c, ok := r.constructors[KidType(strings.ToUpper(strings.TrimSpace(tag)))]
	return c, ok
}

// Types returns the registered tags in sorted order.
func (r *KidTypeRegistry) Types() []KidType {
	types := make([]KidType, 0, len(r.constructors))
	for t := range r.constructors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Build dispatches on tag and returns the constructed kid.
func (r *KidTypeRegistry) Build(tag string, params map[string]string) (Kid, error) {
	c, ok := r.Get(tag)
	if !ok {
		known := make([]string, 0, len(r.constructors))
		for _, t := range r.Types() {
			known = append(known, string(t))
		}
		return Kid{}, ValidationErrors{{
			Field:   "type",
			Value:   tag,
			Message: "unknown kid type, expected one of " + strings.Join(known, ", "),
		}}
	}
	return c(params)
}

// baseKid reads the fields common to every kid type from params.
func baseKid(t KidType, params map[string]string, errs ValidationErrors) (Kid, ValidationErrors) {
	kid := Kid{
		Type:      t,
		FirstName: params["firstName"],
		LastName:  params["lastName"],
	}

	raw, ok := params["birthDate"]
	if !ok || raw == "" {
		errs = append(errs, ValidationError{Field: "birthDate", Message: "is required"})
		return kid, errs
	}
	bd, err := time.Parse(DateLayout, raw)
	if err != nil {
		errs = append(errs, ValidationError{Field: "birthDate", Value: raw, Message: "invalid date, expected yyyy-MM-dd"})
		return kid, errs
	}
	kid.BirthDate = bd
	return kid, errs
}

func newPlainKid(params map[string]string) (Kid, error) {
	kid, errs := baseKid(KidTypeKid, params, nil)
	return kid, errs.orNil()
}

func newBoy(params map[string]string) (Kid, error) {
	kid, errs := baseKid(KidTypeBoy, params, nil)

	raw := params["pantsLength"]
	length, err := strconv.Atoi(raw)
	if err != nil || length <= 0 {
		errs = append(errs, ValidationError{Field: "pantsLength", Value: raw, Message: "must be a positive whole number"})
	}
	kid.Details = BoyDetails{PantsLength: length}
	return kid, errs.orNil()
}

func newGirl(params map[string]string) (Kid, error) {
	kid, errs := baseKid(KidTypeGirl, params, nil)

	color := strings.TrimSpace(params["skirtColor"])
	if color == "" {
		errs = append(errs, ValidationError{Field: "skirtColor", Message: "is required"})
	}
	kid.Details = GirlDetails{SkirtColor: color}
	return kid, errs.orNil()
}
