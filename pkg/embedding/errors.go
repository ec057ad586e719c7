package embedding

import "errors"

// errBatchSizeMismatch is returned when the wrapped embedder violates its
// contract of one vector per input text
var errBatchSizeMismatch = errors.New("embedder returned wrong number of vectors")
