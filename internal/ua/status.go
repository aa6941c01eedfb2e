package ua

import "fmt"

// StatusCode is an OPC UA status code.
type StatusCode uint32

const (
	StatusGood                            StatusCode = 0x00000000
	StatusBadInternalError                StatusCode = 0x80020000
	StatusBadServerHalted                 StatusCode = 0x800E0000
	StatusBadNodeIDInvalid                StatusCode = 0x80330000
	StatusBadNodeIDUnknown                StatusCode = 0x80340000
	StatusBadAttributeIDInvalid           StatusCode = 0x80350000
	StatusBadNotWritable                  StatusCode = 0x803B0000
	StatusBadOutOfRange                   StatusCode = 0x803C0000
	StatusBadReferenceNotAllowed          StatusCode = 0x805C0000
	StatusBadNodeIDExists                 StatusCode = 0x805E0000
	StatusBadNodeClassInvalid             StatusCode = 0x805F0000
	StatusBadTargetNodeIDInvalid          StatusCode = 0x80650000
	StatusBadDuplicateReferenceNotAllowed StatusCode = 0x80660000
	StatusBadTypeMismatch                 StatusCode = 0x80740000
	StatusBadNotImplemented               StatusCode = 0x80400000
	StatusBadInvalidArgument              StatusCode = 0x80AB0000
)

var statusNames = map[StatusCode]string{
	StatusGood:                            "Good",
	StatusBadInternalError:                "BadInternalError",
	StatusBadServerHalted:                 "BadServerHalted",
	StatusBadNodeIDInvalid:                "BadNodeIdInvalid",
	StatusBadNodeIDUnknown:                "BadNodeIdUnknown",
	StatusBadAttributeIDInvalid:           "BadAttributeIdInvalid",
	StatusBadNotWritable:                  "BadNotWritable",
	StatusBadOutOfRange:                   "BadOutOfRange",
	StatusBadReferenceNotAllowed:          "BadReferenceNotAllowed",
	StatusBadNodeIDExists:                 "BadNodeIdExists",
	StatusBadNodeClassInvalid:             "BadNodeClassInvalid",
	StatusBadTargetNodeIDInvalid:          "BadTargetNodeIdInvalid",
	StatusBadDuplicateReferenceNotAllowed: "BadDuplicateReferenceNotAllowed",
	StatusBadTypeMismatch:                 "BadTypeMismatch",
	StatusBadNotImplemented:               "BadNotImplemented",
	StatusBadInvalidArgument:              "BadInvalidArgument",
}

func (s StatusCode) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("0x%08X", uint32(s))
}

// IsGood reports whether the severity bits are Good.
func (s StatusCode) IsGood() bool {
	return s&0xC0000000 == 0
}

// IsBad reports whether the severity bits are Bad.
func (s StatusCode) IsBad() bool {
	return s&0x80000000 != 0
}
