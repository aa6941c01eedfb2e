package addrspace

import (
	"errors"

	"uaspace/internal/ua"
)

var statusByError = []struct {
	err  error
	code ua.StatusCode
}{
	{ErrServerNotRunning, ua.StatusBadServerHalted},
	{ErrDuplicateID, ua.StatusBadNodeIDExists},
	{ErrInvalidClass, ua.StatusBadNodeClassInvalid},
	{ErrNotFound, ua.StatusBadNodeIDUnknown},
	{ErrHasReferences, ua.StatusBadReferenceNotAllowed},
	{ErrAttributeNotApplicable, ua.StatusBadAttributeIDInvalid},
	{ErrAttributeNotWritable, ua.StatusBadNotWritable},
	{ErrTypeMismatch, ua.StatusBadTypeMismatch},
	{ErrValueOutOfRange, ua.StatusBadOutOfRange},
	{ErrDanglingEndpoint, ua.StatusBadTargetNodeIDInvalid},
	{ErrDuplicateReference, ua.StatusBadDuplicateReferenceNotAllowed},
	{ua.ErrInvalidNodeID, ua.StatusBadNodeIDInvalid},
}

// StatusOf maps an error returned by this package to its OPC UA status
// code. nil maps to Good and unknown errors to BadInternalError.
func StatusOf(err error) ua.StatusCode {
	if err == nil {
		return ua.StatusGood
	}
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return ua.StatusBadInternalError
}
