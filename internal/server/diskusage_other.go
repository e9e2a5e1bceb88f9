//go:build !(linux || darwin || freebsd)

package server

import "errors"

func diskUsage(string) (StorageDetails, error) {
	return StorageDetails{}, errors.New("disk usage not supported on this platform")
}

// dirWritable is not checked on this platform; Save reports write failures.
func dirWritable(string) error {
	return nil
}
