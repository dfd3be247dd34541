package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// QueryID identifies a query on the remote service.
type QueryID int64

// String returns the decimal form used in filenames, URLs and logs.
func (id QueryID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Valid reports whether the id could have been assigned by the remote service.
func (id QueryID) Valid() bool {
	return id > 0
}

// ParseQueryID parses a decimal query id. Zero and negative values are rejected.
func ParseQueryID(s string) (QueryID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, ErrValidation("invalid query id %q", s)
	}
	id := QueryID(n)
	if !id.Valid() {
		return 0, ErrValidation("invalid query id %q: must be positive", s)
	}
	return id, nil
}

// NewRequestID generates a UUIDv7 string used to correlate outgoing API calls.
func NewRequestID() string {
	return uuid.Must(uuid.NewV7()).String()
}
