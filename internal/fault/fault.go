package fault

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Kind classifies a collaborator failure so callers can branch on the
// class of failure instead of matching message text.
type Kind int

const (
	Internal Kind = iota
	Unavailable
	NotFound
	Invalid
)

func (k Kind) String() string {
	switch k {
	case Unavailable:
		return "unavailable"
	case NotFound:
		return "not_found"
	case Invalid:
		return "invalid"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Unavailablef(op string, err error) error {
	return &Error{Kind: Unavailable, Op: op, Err: err}
}

func NotFoundf(op string, err error) error {
	return &Error{Kind: NotFound, Op: op, Err: err}
}

func Invalidf(op string, err error) error {
	return &Error{Kind: Invalid, Op: op, Err: err}
}

// KindOf returns the kind of the outermost fault.Error in err's chain,
// or Internal when err carries no kind.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

func IsUnavailable(err error) bool {
	return err != nil && KindOf(err) == Unavailable
}

func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == NotFound
}

// FromTransport wraps an error coming back from a backing service,
// classifying connectivity-shaped failures as Unavailable. The
// classification happens here, at the collaborator boundary; callers
// only ever switch on the kind.
func FromTransport(op string, err error) error {
	if err == nil {
		return nil
	}
	if connectivity(err) {
		return &Error{Kind: Unavailable, Op: op, Err: err}
	}
	return &Error{Kind: Internal, Op: op, Err: err}
}

func connectivity(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
