package control

import "errors"

var (
	errUnknownHandlerKind = errors.New("control: unknown handler kind")
	errEndpointNotFound   = errors.New("control: no mocked endpoint with that id")
)
