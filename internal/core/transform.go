package core

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// Transform maps a record between read and write. Returning an error
// rejects the record and aborts its chunk.
type Transform interface {
	Apply(ctx context.Context, c Customer) (Customer, error)
}

// TransformFunc adapts a function to the Transform interface.
type TransformFunc func(ctx context.Context, c Customer) (Customer, error)

// Apply calls f.
func (f TransformFunc) Apply(ctx context.Context, c Customer) (Customer, error) {
	return f(ctx, c)
}

// Identity passes records through unchanged.
var Identity Transform = TransformFunc(func(_ context.Context, c Customer) (Customer, error) {
	return c, nil
})

// Chain applies transforms in order, stopping at the first error.
// An empty chain is Identity.
func Chain(ts ...Transform) Transform {
	if len(ts) == 0 {
		return Identity
	}
	if len(ts) == 1 {
		return ts[0]
	}
	return TransformFunc(func(ctx context.Context, c Customer) (Customer, error) {
		var err error
		for _, t := range ts {
			if c, err = t.Apply(ctx, c); err != nil {
				return Customer{}, err
			}
		}
		return c, nil
	})
}

// TrimSpace trims surrounding whitespace from every text field.
func TrimSpace() Transform {
	return TransformFunc(func(_ context.Context, c Customer) (Customer, error) {
		for _, spec := range CustomerFields {
			if spec.Type != FieldText {
				continue
			}
			if err := spec.Set(&c, strings.TrimSpace(spec.Get(&c))); err != nil {
				return Customer{}, err
			}
		}
		return c, nil
	})
}

var errInvalidEmail = errors.New("invalid email address")

// RequireEmail rejects records whose email is empty or not a bare address.
func RequireEmail() Transform {
	return TransformFunc(func(_ context.Context, c Customer) (Customer, error) {
		addr, err := mail.ParseAddress(c.Email)
		if err != nil || addr.Address != c.Email {
			return Customer{}, fmt.Errorf("%w: %q", errInvalidEmail, c.Email)
		}
		return c, nil
	})
}

// TransformByName returns the stateless built-in transform for name:
// "trim" for TrimSpace or "require-email" for RequireEmail.
func TransformByName(name string) (Transform, error) {
	switch strings.ToLower(name) {
	case "trim":
		return TrimSpace(), nil
	case "require-email":
		return RequireEmail(), nil
	}
	return nil, fmt.Errorf("unknown transform %q", name)
}

// RejectDuplicates fails any record whose id was already seen by this
// transform. It keeps one map entry per id for the life of the transform,
// so build a fresh one per run.
func RejectDuplicates() Transform {
	seen := make(map[int64]struct{})
	return TransformFunc(func(_ context.Context, c Customer) (Customer, error) {
		if _, dup := seen[c.ID]; dup {
			return Customer{}, ErrDuplicateID
		}
		seen[c.ID] = struct{}{}
		return c, nil
	})
}
