package ledger

import (
	"context"
	"errors"

	"core_bank/internal/auth"
	"core_bank/internal/domain"
	"core_bank/internal/store"
)

const (
	MaxPageSize     = 100 // Largest History page
	DefaultPageSize = 10  // Page size used when the requested one is out of range
)

// PageBounds normalizes a requested page and size the way History applies them.
func PageBounds(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return page, size
}

// Summary returns the caller's account and credit card. The card is nil when
// the caller holds none.
func (e *Engine) Summary(ctx context.Context, actor *domain.Identity) (*domain.Account, *domain.CreditCard, error) {
	if err := auth.Authorize(actor); err != nil {
		return nil, nil, err
	}
	acct, err := e.store.AccountByUser(ctx, actor.UserID)
	if err != nil {
		return nil, nil, classify(notFound(err, domain.ErrAccountNotFound))
	}
	card, err := e.store.CreditCardByUser(ctx, actor.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return acct, nil, nil
	}
	if err != nil {
		return nil, nil, classify(err)
	}
	return acct, card, nil
}

// History returns one page of the caller's movements, newest first, and the
// total count. page starts at 1.
func (e *Engine) History(ctx context.Context, actor *domain.Identity, page, size int) ([]domain.Movement, int64, error) {
	if err := auth.Authorize(actor); err != nil {
		return nil, 0, err
	}
	page, size = PageBounds(page, size)
	acct, err := e.store.AccountByUser(ctx, actor.UserID)
	if err != nil {
		return nil, 0, classify(notFound(err, domain.ErrAccountNotFound))
	}
	movements, total, err := e.store.Movements(ctx, acct.ID, (page-1)*size, size)
	if err != nil {
		return nil, 0, classify(err)
	}
	return movements, total, nil
}
