package rag

import "errors"

// ErrProviderUnavailable indicates the embedding or LLM provider could
// not be reached while generating the answer itself. Recoverable
// provider failures earlier in the pipeline (query expansion, coverage
// check) degrade locally and never surface this error.
var ErrProviderUnavailable = errors.New("llm provider unavailable")
