package inference

import "errors"

var (
	// ErrPoolClosed is returned by Acquire after Close.
	ErrPoolClosed = errors.New("inference: pool is closed")

	// ErrSessionClosed is returned by Run after Close.
	ErrSessionClosed = errors.New("inference: session is closed")

	// ErrOutputShape indicates model outputs that are not boxes [N,4] and
	// scores [N].
	ErrOutputShape = errors.New("inference: unexpected output shape")
)
