package manifest

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/ballot/internal/model"
)

// Target is the part of the election surface seeding writes through.
type Target interface {
	ListRegistrants(ctx context.Context) ([]model.Registrant, error)
	CreateRegistrant(ctx context.Context, name string) (model.Registrant, error)
	Lookup(ctx context.Context, slot int) (model.Identity, error)
	CreateIdentity(ctx context.Context, name string, slot int, p model.Privilege) (model.Identity, error)
}

// SeedResult lists what Seed created and what already existed.
type SeedResult struct {
	CreatedRegistrants     []string `json:"created_registrants"`
	ExistingRegistrants    []string `json:"existing_registrants"`
	CreatedAdministrators  []int    `json:"created_administrators"`
	ExistingAdministrators []int    `json:"existing_administrators"`
}

// Seed creates every registrant and administrator the manifest declares
// that is not already present. Running it twice changes nothing the
// second time.
//
// A declared administrator slot bound to a different identity is a
// constraint violation; Seed stops there and returns what it did so far.
func Seed(ctx context.Context, t Target, e *Election) (SeedResult, error) {
	res := SeedResult{
		CreatedRegistrants:     []string{},
		ExistingRegistrants:    []string{},
		CreatedAdministrators:  []int{},
		ExistingAdministrators: []int{},
	}

	existing, err := t.ListRegistrants(ctx)
	if err != nil {
		return res, err
	}
	present := make(map[string]bool, len(existing))
	for _, r := range existing {
		present[r.Name] = true
	}

	for _, name := range e.Registrants {
		if present[name] {
			res.ExistingRegistrants = append(res.ExistingRegistrants, name)
			continue
		}
		if _, err := t.CreateRegistrant(ctx, name); err != nil {
			return res, err
		}
		res.CreatedRegistrants = append(res.CreatedRegistrants, name)
	}

	for _, a := range e.Administrators {
		ident, err := t.Lookup(ctx, a.Slot)
		switch {
		case err == nil:
			if ident.Name != a.Name || !ident.Privilege.IsAdministrator() {
				return res, model.NewError(model.KindConstraint, "seed",
					fmt.Sprintf("slot %d is bound to %q, manifest declares administrator %q", a.Slot, ident.Name, a.Name))
			}
			res.ExistingAdministrators = append(res.ExistingAdministrators, a.Slot)
			continue
		case !errors.Is(err, model.ErrNotFound):
			return res, err
		}

		if _, err := t.CreateIdentity(ctx, a.Name, a.Slot, model.PrivilegeAdministrator); err != nil {
			return res, err
		}
		res.CreatedAdministrators = append(res.CreatedAdministrators, a.Slot)
	}
	return res, nil
}
