package domain

import "fmt"

// Action is the outcome of running a client query through the response policy.
type Action uint8

const (
	// ActionForward sends the query upstream unchanged.
	ActionForward Action = iota
	// ActionFormatError answers FORMERR.
	ActionFormatError
	// ActionNotImplemented answers NOTIMP.
	ActionNotImplemented
	// ActionRefused answers REFUSED.
	ActionRefused
)

// String returns the label used in traffic logs.
func (a Action) String() string {
	switch a {
	case ActionForward:
		return "query"
	case ActionFormatError:
		return "format error"
	case ActionNotImplemented:
		return "not implemented"
	case ActionRefused:
		return "blacklisted"
	default:
		return fmt.Sprintf("Action(%d)", a)
	}
}

// RCode returns the response code written for a non-forward action.
// ActionForward maps to NOERROR, which is never written.
func (a Action) RCode() RCode {
	switch a {
	case ActionFormatError:
		return RCodeFormErr
	case ActionNotImplemented:
		return RCodeNotImp
	case ActionRefused:
		return RCodeRefused
	default:
		return RCodeNoError
	}
}

// Verdict is the policy decision for one client datagram.
type Verdict struct {
	Action  Action
	Message Message
	// Reason explains a FORMERR classification; nil otherwise.
	Reason error
	// Entry is the blacklist entry behind a refusal.
	Entry string
}

// IsForward is a convenience accessor.
func (v Verdict) IsForward() bool { return v.Action == ActionForward }
