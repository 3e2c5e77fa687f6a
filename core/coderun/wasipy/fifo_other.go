//go:build !unix

package wasipy

import "errors"

func mkfifo(string) error {
	return errors.New("named pipes are not supported on this platform")
}
