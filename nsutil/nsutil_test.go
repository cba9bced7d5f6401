package nsutil_test

import (
	"os"
	"testing"

	"github.com/m-lab/go/rtx"
	"github.com/m-lab/rtnl/nsutil"
)

func makeFakeProc(t *testing.T) string {
	t.Helper()
	d := t.TempDir()
	rtx.Must(os.MkdirAll(d+"/proc/123/ns/", 0777), "could not create fake proc")
	rtx.Must(os.Symlink("net:[4026532008]", d+"/proc/123/ns/net"), "could not create symlink")
	rtx.Must(os.MkdirAll(d+"/proc/456/ns/", 0777), "could not create fake proc")
	rtx.Must(os.Symlink("net:[4026532010]", d+"/proc/456/ns/net"), "could not create symlink")
	// A pid sharing 456's namespace should not produce a second entry.
	rtx.Must(os.MkdirAll(d+"/proc/457/ns/", 0777), "could not create fake proc")
	rtx.Must(os.Symlink("net:[4026532010]", d+"/proc/457/ns/net"), "could not create symlink")
	// A pid with no net namespace.
	rtx.Must(os.MkdirAll(d+"/proc/789/", 0777), "could not create fake proc")
	return d + "/proc"
}

func TestListPidsDedupesByNamespace(t *testing.T) {
	procfs := makeFakeProc(t)
	pids, err := nsutil.ListPids(procfs)
	if err != nil {
		t.Fatal(err)
	}
	if len(pids) != 2 {
		t.Fatalf("got %d distinct namespaces, want 2: %v", len(pids), pids)
	}
}

func TestListPidsBadProcFails(t *testing.T) {
	_, err := nsutil.ListPids("/ThisPathShouldNotExist")
	if err != nsutil.ErrCantReadProc {
		t.Errorf("got %v, want ErrCantReadProc", err)
	}
}

// TestFDByPidSelf opens our own network namespace, which needs no
// privilege, and releases it through Close.
func TestFDByPidSelf(t *testing.T) {
	fd, err := nsutil.FDByPid(os.Getpid())
	if err != nil {
		t.Fatal(err)
	}
	if fd <= 0 {
		t.Fatalf("fd = %d, want a valid descriptor", fd)
	}
	if err := nsutil.Close(fd); err != nil {
		t.Errorf("Close(%d) = %v", fd, err)
	}
}

func TestFDByPathSelf(t *testing.T) {
	fd, err := nsutil.FDByPath("/proc/self/ns/net")
	if err != nil {
		t.Fatal(err)
	}
	if err := nsutil.Close(fd); err != nil {
		t.Errorf("Close(%d) = %v", fd, err)
	}
}
