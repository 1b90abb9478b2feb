package errors

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")
	ErrFetch    = errors.New("fetch failed")
	ErrExtract  = errors.New("no usable content root")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

func IsFetch(err error) bool {
	return errors.Is(err, ErrFetch)
}

func IsExtract(err error) bool {
	return errors.Is(err, ErrExtract)
}
