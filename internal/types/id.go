package types

import "strconv"

// ID is the backend's opaque positive identifier.
type ID int64

func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(n), nil
}
