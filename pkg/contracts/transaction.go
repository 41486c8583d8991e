package contracts

import "context"

// Transactor runs fn as one atomic unit of work. Repositories called with the
// ctx handed to fn take part in the same unit.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoTransaction runs fn directly. It is used against stores that cannot run
// multi-document transactions (a standalone mongod), where callers fall back to
// ordered writes.
type NoTransaction struct{}

func (NoTransaction) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
