package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Class buckets every error surfaced to a user. Validation errors never
// reach the network; ReadFailure is the only class that may be logged and
// skipped instead of displayed.
type Class int

const (
	Unknown Class = iota
	WalletUnavailable
	UserRejected
	WrongNetwork
	Validation
	ContractRevert
	ReadFailure
)

func (c Class) String() string {
	switch c {
	case WalletUnavailable:
		return "wallet_unavailable"
	case UserRejected:
		return "user_rejected"
	case WrongNetwork:
		return "wrong_network"
	case Validation:
		return "validation"
	case ContractRevert:
		return "contract_revert"
	case ReadFailure:
		return "read_failure"
	default:
		return "unknown"
	}
}

type Fault struct {
	Class Class
	Msg   string
	Err   error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		if f.Msg != "" {
			return f.Msg + ": " + f.Err.Error()
		}
		return f.Err.Error()
	}
	return f.Msg
}

func (f *Fault) Unwrap() error { return f.Err }

func New(class Class, format string, args ...interface{}) *Fault {
	return &Fault{Class: class, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(class Class, err error, msg string) *Fault {
	return &Fault{Class: class, Msg: msg, Err: err}
}

// ClassOf returns the class of err, classifying raw provider errors when no
// Fault is present in the chain.
func ClassOf(err error) Class {
	if err == nil {
		return Unknown
	}
	var f *Fault
	if errors.As(err, &f) {
		return f.Class
	}
	return classify(err.Error())
}

// AsFault normalizes any error into a Fault, preserving an existing one.
func AsFault(err error) *Fault {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	return &Fault{Class: classify(err.Error()), Err: err}
}

// classify maps raw provider/RPC error text onto the taxonomy. Substring
// matching mirrors how wallet bridges and nodes report these conditions.
func classify(msg string) Class {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "user denied"),
		strings.Contains(lower, "user rejected"),
		strings.Contains(msg, "4001"):
		return UserRejected
	case strings.Contains(lower, "execution reverted"),
		strings.Contains(lower, "revert"):
		return ContractRevert
	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "dial tcp"):
		return WalletUnavailable
	default:
		return Unknown
	}
}

// RevertReason extracts the human part of an "execution reverted: ..."
// message, or returns the message unchanged.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.Index(msg, "execution reverted:"); i >= 0 {
		return strings.TrimSpace(msg[i+len("execution reverted:"):])
	}
	return msg
}
