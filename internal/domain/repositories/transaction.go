package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager handles database transactions
type TransactionManager interface {
	// ExecTx runs fn in a transaction. When ctx already carries one, fn runs
	// in a savepoint: its failure rolls back only its own writes and the
	// error is returned to the caller, which decides whether to continue.
	ExecTx(ctx context.Context, fn TxFn) error
}
