package player

import "errors"

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindResolution
	KindStreamProvider
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindResolution:
		return "resolution"
	case KindStreamProvider:
		return "stream provider"
	case KindTransport:
		return "transport"
	}
	return "unknown"
}

// Error carries a kind so callers can tell user mistakes from backend failures.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

func NewResolutionError(msg string, err error) *Error {
	return &Error{Kind: KindResolution, Msg: msg, Err: err}
}

func NewStreamError(msg string, err error) *Error {
	return &Error{Kind: KindStreamProvider, Msg: msg, Err: err}
}

func NewTransportError(msg string, err error) *Error {
	return &Error{Kind: KindTransport, Msg: msg, Err: err}
}

var (
	ErrNotInVoice     = &Error{Kind: KindValidation, Msg: "you need to be in a voice channel"}
	ErrEmptyQuery     = &Error{Kind: KindValidation, Msg: "give me something to search for"}
	ErrNothingPlaying = &Error{Kind: KindValidation, Msg: "nothing is playing"}
	ErrNotConnected   = &Error{Kind: KindValidation, Msg: "not connected to a voice channel"}
	ErrNoPlayer       = &Error{Kind: KindValidation, Msg: "no player in this server"}

	ErrNoResults = &Error{Kind: KindResolution, Msg: "no results"}

	ErrJoinCancelled = &Error{Kind: KindTransport, Msg: "session stopped while joining"}
)
