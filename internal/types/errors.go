// README: Errors shared across modules.
package types

import "errors"

// ErrPersistence wraps any I/O failure coming back from the backing store.
var ErrPersistence = errors.New("persistence error")
