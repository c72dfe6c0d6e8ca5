package ids

import "errors"

// ErrSequenceExhausted is returned once a Sequence has handed out every value.
var ErrSequenceExhausted = errors.New("ids: sequence exhausted")
