package pkg

import (
	"errors"
	"strconv"
)

var ErrMalformedID = errors.New("malformatted id")

// ParseID parses a resource id taken from a request path. Only positive
// integers within the SERIAL column range are valid ids.
func ParseID(idStr string) (int, error) {
	id, err := strconv.ParseInt(idStr, 10, 32)
	if err != nil || id <= 0 {
		return 0, ErrMalformedID
	}
	return int(id), nil
}
