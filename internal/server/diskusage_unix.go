//go:build linux || darwin || freebsd

package server

import "golang.org/x/sys/unix"

// diskUsage reports capacity of the filesystem holding path.
func diskUsage(path string) (StorageDetails, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return StorageDetails{}, err
	}

	bsize := int64(st.Bsize)
	total := int64(st.Blocks) * bsize
	avail := int64(st.Bavail) * bsize
	used := total - int64(st.Bfree)*bsize

	var pct float64
	if total > 0 {
		pct = float64(used) / float64(total) * 100
	}

	return StorageDetails{
		AvailableBytes: avail,
		UsedBytes:      used,
		TotalBytes:     total,
		PercentageUsed: pct,
	}, nil
}

// dirWritable asks the kernel whether the process may create entries in dir.
func dirWritable(dir string) error {
	return unix.Access(dir, unix.W_OK|unix.X_OK)
}
