package rpc

import "syscall"

// freeBytesAt returns the number of free bytes available to an unprivileged
// user on the filesystem containing path.
func freeBytesAt(path string) (int64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}
