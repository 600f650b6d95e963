//go:build !unix && !windows

package blob

import "errors"

func lockFile(path string) (func(), error) {
	return nil, errors.New("file locking is not supported on this platform")
}
