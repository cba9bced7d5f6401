// Package nsutil resolves network namespaces into open file descriptors
// for IFLA_NET_NS_FD, and enumerates known namespaces by scanning
// /proc/<pid>/ns/net symlinks. A veth peer's namespace needs to be
// resolved once per call, so this is a one-shot listing, not a watch.
package nsutil

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/vishvananda/netns"
)

// ErrCantReadProc is returned when /proc is unreadable.
var ErrCantReadProc = errors.New("can't read /proc")

// FDByName opens the named network namespace (as created by `ip netns
// add`) and returns its file descriptor, suitable for IFLA_NET_NS_FD.
// The caller is responsible for closing it.
func FDByName(name string) (int, error) {
	h, err := netns.GetFromName(name)
	if err != nil {
		return 0, err
	}
	return int(h), nil
}

// FDByPid opens the network namespace of the given pid and returns its
// file descriptor, suitable for IFLA_NET_NS_FD.
func FDByPid(pid int) (int, error) {
	h, err := netns.GetFromPid(pid)
	if err != nil {
		return 0, err
	}
	return int(h), nil
}

// FDByPath opens the network namespace at the given bind-mounted path
// and returns its file descriptor.
func FDByPath(path string) (int, error) {
	h, err := netns.GetFromPath(path)
	if err != nil {
		return 0, err
	}
	return int(h), nil
}

// Close releases a handle obtained from one of the FDBy* functions.
func Close(fd int) error {
	h := netns.NsHandle(fd)
	return h.Close()
}

// ListPids scans procfs (normally "/proc") for pids that have a network
// namespace, returning one pid per distinct namespace inode encountered.
func ListPids(procfs string) ([]int, error) {
	d, err := os.Open(procfs)
	if err != nil {
		return nil, ErrCantReadProc
	}
	defer d.Close()

	subdirs, err := d.Readdirnames(0)
	if err != nil {
		return nil, ErrCantReadProc
	}

	seen := make(map[string]bool)
	var pids []int
	for _, subdir := range subdirs {
		pid, err := strconv.Atoi(subdir)
		if err != nil {
			continue
		}
		nsFile, err := os.Readlink(procfs + "/" + subdir + "/ns/net")
		if err != nil {
			continue
		}
		chunks := strings.Split(nsFile, ":")
		if len(chunks) < 2 {
			log.Println("ill-formatted net namespace link:", nsFile)
			continue
		}
		inode := chunks[len(chunks)-1]
		if len(inode) <= 2 {
			continue
		}
		inode = inode[1 : len(inode)-1]
		if seen[inode] {
			continue
		}
		seen[inode] = true
		pids = append(pids, pid)
	}
	return pids, nil
}
