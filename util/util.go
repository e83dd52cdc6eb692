package util

import "golang.org/x/xerrors"

func WrapErr(msg string, err error) error {
	return xerrors.Errorf("%s: %w", msg, err)
}

// CeilDiv returns ceil(a/b) for a >= 0 and b > 0.
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}
