package threadsync

import "errors"

// Error kinds returned by the synchronizer. Components wrap the underlying
// cause as fmt.Errorf("%w: %w", kind, cause) so callers can match the kind
// with errors.Is and still print the original message.
var (
	ErrNotFound             = errors.New("post not found")
	ErrProvisioningFailed   = errors.New("thread provisioning failed")
	ErrInvalidResourceKind  = errors.New("bound channel is not a thread")
	ErrReconciliationFailed = errors.New("thread reconciliation failed")
	ErrRetrievalFailed      = errors.New("message retrieval failed")
)
