package discovery

import "errors"

// ErrNoTransactions means the program has no observable transaction
// history: the initial signature page was empty or could not be fetched.
var ErrNoTransactions = errors.New("program has no valid transactions")

// ErrSearchExhausted means the pagination search hit the safety cap before
// reaching the end of history. The first transaction was not found; callers
// must not treat this as an empty history.
var ErrSearchExhausted = errors.New("first transaction not found within page search limit")
