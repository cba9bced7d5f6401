// rtnlinfo is a minimal reference implementation of an rtnl caller: it
// dumps the host's links via the facade and prints one line per link, a
// read-only smoke test of the whole engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"

	"github.com/m-lab/rtnl/nsutil"
	"github.com/m-lab/rtnl/rtnl"
)

func init() {
	// Always prepend the filename and line number.
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	promPort = flag.String("prom", ":9090", "Prometheus metrics export address and port.")

	// A variable to enable mocking for testing.
	logFatal = log.Fatal
)

func printLinks(h *rtnl.Handle) error {
	links, err := h.LinkList()
	if err != nil {
		return err
	}
	for _, l := range links {
		fmt.Printf("%d\t%s\t%s\tmtu=%d flags=0x%x\n", l.Attrs.Index, l.Attrs.Name, l.Kind, l.Attrs.MTU, l.Attrs.RawFlags)
	}
	return nil
}

// printNamespaces reports how many distinct network namespaces are
// visible in /proc; links dumped above belong only to the current one.
func printNamespaces() error {
	pids, err := nsutil.ListPids("/proc")
	if err != nil {
		return err
	}
	fmt.Printf("# %d distinct network namespace(s) visible in /proc\n", len(pids))
	return nil
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from environment variables")

	promSrv := prometheusx.MustStartPrometheus(*promPort)
	defer promSrv.Shutdown(context.Background())

	h := rtnl.NewHandle()
	defer h.Close()

	if err := printLinks(h); err != nil {
		logFatal(err)
	}
	if err := printNamespaces(); err != nil {
		logFatal(err)
	}
}
