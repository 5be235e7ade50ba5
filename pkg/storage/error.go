package storage

import "errors"

// NotFoundError is returned when a row doesn't exist in the store, or exists
// but is not visible to the caller (e.g. another user's conversation).
type NotFoundError struct {
	Resource string
	ID       string
}

func (e NotFoundError) Error() string {
	resource := e.Resource
	if resource == "" {
		resource = "record"
	}

	if e.ID == "" {
		return resource + " not found"
	}

	return resource + " not found: " + e.ID
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
