package gateway

import "errors"

// Every failure is a caller/claim defect or a lost race; none are retried
// here. Callers inspect ledger state to decide whether retrying makes
// sense.
var (
	ErrTakerMismatch          = errors.New("gateway: caller is not the claim taker")
	ErrMakerMismatch          = errors.New("gateway: caller is not the claim maker")
	ErrClaimExpired           = errors.New("gateway: claim has expired")
	ErrInvalidSignature       = errors.New("gateway: maker signature is invalid")
	ErrInvalidSignatureKind   = errors.New("gateway: unrecognized signature kind")
	ErrDeployCancelled        = errors.New("gateway: claim was cancelled")
	ErrDeployAlreadyPerformed = errors.New("gateway: claim was already performed")
)
