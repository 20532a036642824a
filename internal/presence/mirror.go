package presence

import (
	"context"
	"errors"
)

// Mirror receives online/offline transitions so presence can be observed
// outside this process (persisted user flags, a shared key-value store).
// The in-memory Registry stays the source of truth for delivery decisions.
type Mirror interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

// Mirrors fans a transition out to every configured mirror.
type Mirrors []Mirror

func (ms Mirrors) SetOnline(ctx context.Context, userID string) error {
	var errs []error
	for _, m := range ms {
		if err := m.SetOnline(ctx, userID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (ms Mirrors) SetOffline(ctx context.Context, userID string) error {
	var errs []error
	for _, m := range ms {
		if err := m.SetOffline(ctx, userID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
