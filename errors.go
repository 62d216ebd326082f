package sequent

import "errors"

var (
	// Construction errors.
	ErrNilListener = errors.New("sequent: nil listener")
	ErrNoExecutor  = errors.New("sequent: no executor configured")
	ErrNilPolicy   = errors.New("sequent: listener returned a nil sequencing policy")
	ErrNilEvent    = errors.New("sequent: nil event")
)
