package repository

import "context"

// Store gives access to the catalog repositories of one backend.
//
// WithTx runs fn inside a single transaction: everything fn does through the
// Store it receives is committed together or not at all. Calling WithTx on a
// Store that is already transactional joins the current transaction.
type Store interface {
	Products() ProductRepository
	OutboxMsgs() OutboxMsgRepository
	WithTx(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
}

// ExclusiveTx is implemented by stores whose transactions block every other
// reader and writer until they finish. Callers doing slow work between a read
// and a write should not hold such a transaction across it.
type ExclusiveTx interface {
	ExclusiveTx() bool
}
