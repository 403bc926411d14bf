package client

import "errors"

var (
	errBadDataName     = errors.New("data_name must be alphanumeric")
	errProtocolMismatch = errors.New("unsupported suite/encryption returned by server")
	errNoActiveMatch    = errors.New("no active match found")
)
