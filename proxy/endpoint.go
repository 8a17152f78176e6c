package proxy

import (
	uuid "github.com/satori/go.uuid"
)

// MockedEndpoint is a read-only snapshot of a registered Rule plus its match
// history, the shape returned over the control channel's
// mockedEndpoints/mockedEndpoint queries.
type MockedEndpoint struct {
	ID       uuid.UUID
	Priority int
	Seen     int
	Pending  bool // true if the Checker would still accept another match

	// SeenRequests holds every request this rule has matched, oldest
	// first, cleared together with Seen by Reset.
	SeenRequests []*Request
}
