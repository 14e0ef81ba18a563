//go:build !unix && !darwin

package main

import (
	"errors"
)

var errUnsupported = errors.New("terminal size not available for this platform")

func getTermColumns() (int, error) {
	return 0, errUnsupported
}
