package app

import "errors"

var ErrUnknownSession = errors.New("unknown session")
