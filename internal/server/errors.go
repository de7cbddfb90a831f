package server

import "errors"

// ErrHandshake wraps any failure of a client's post-connect Hello exchange,
// letting callers classify handshake failures via errors.Is.
var ErrHandshake = errors.New("handshake")
