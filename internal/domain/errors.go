package domain

import "errors"

var (
	ErrParse          = errors.New("malformed quote payload")
	ErrZeroImpact     = errors.New("zero price impact")
	ErrQuoteFetch     = errors.New("quote fetch failed")
	ErrAssembly       = errors.New("transaction assembly failed")
	ErrSubmission     = errors.New("transaction submission failed")
	ErrConfirmTimeout = errors.New("confirmation timeout")
	ErrApprovalFailed = errors.New("token approval failed")
	ErrPartialFill    = errors.New("partial execution")
	ErrRateLimited    = errors.New("rate limited")
	ErrNotFound       = errors.New("not found")
)
