// Package chainstore implements the UTXO-aware chain store, block
// validator, difficulty engine, and reorg engine (spec.md C4–C7).
package chainstore

import (
	"errors"
	"fmt"
)

// ErrorKind identifies one of the typed consensus/store error kinds from
// spec.md §7. Callers should compare Kind, never the formatted message.
type ErrorKind int

const (
	ErrInvalidHeight ErrorKind = iota
	ErrBadParent
	ErrBadTimestamp
	ErrBadPoW
	ErrBadMerkle
	ErrBadCoinbasePosition
	ErrSigInvalid
	ErrMissingPrevOut
	ErrDoubleSpend
	ErrImmatureCoinbase
	ErrInputsLessThanOutputs
	ErrCoinbaseOverpay
	ErrBlockTooLarge
	ErrReorgTooDeep
	ErrReorgNoGain
	ErrBadFork
)

var errorKindNames = map[ErrorKind]string{
	ErrInvalidHeight:         "invalid-height",
	ErrBadParent:             "bad-parent",
	ErrBadTimestamp:          "bad-timestamp",
	ErrBadPoW:                "bad-pow",
	ErrBadMerkle:             "bad-merkle",
	ErrBadCoinbasePosition:   "bad-coinbase-position",
	ErrSigInvalid:            "sig-invalid",
	ErrMissingPrevOut:        "missing-prev-out",
	ErrDoubleSpend:           "double-spend",
	ErrImmatureCoinbase:      "immature-coinbase",
	ErrInputsLessThanOutputs: "inputs-less-than-outputs",
	ErrCoinbaseOverpay:       "coinbase-overpay",
	ErrBlockTooLarge:         "block-too-large",
	ErrReorgTooDeep:          "reorg-too-deep",
	ErrReorgNoGain:           "reorg-no-gain",
	ErrBadFork:               "bad-fork",
}

func (k ErrorKind) String() string {
	if s, ok := errorKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("unknown-error-kind(%d)", int(k))
}

// RuleError is a typed, comparable validation failure. It never
// propagates as a panic and never crashes the validating process.
type RuleError struct {
	Kind    ErrorKind
	Message string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is supports errors.Is(err, &RuleError{Kind: SomeKind}) comparisons by
// Kind only, ignoring Message.
func (e *RuleError) Is(target error) bool {
	other, ok := target.(*RuleError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func ruleErrorf(kind ErrorKind, format string, args ...interface{}) *RuleError {
	return &RuleError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the ErrorKind of err if it is (or wraps) a *RuleError,
// and ok=false otherwise.
func KindOf(err error) (kind ErrorKind, ok bool) {
	var re *RuleError
	if !errors.As(err, &re) {
		return 0, false
	}
	return re.Kind, true
}
