// linkcsv pipes a dump of the host's links through gocarina/gocsv,
// writing one CSV row per link to stdout.
package main

import (
	"io"
	"log"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/m-lab/rtnl/iface"
	"github.com/m-lab/rtnl/rtnl"
)

func init() {
	// Always prepend the filename and line number.
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	// A variable to enable mocking for testing.
	logFatal = log.Fatal
)

// linkRow is the CSV-friendly projection of an iface.Link: gocsv needs
// exported scalar fields, so the tagged union is flattened rather than
// marshaled as-is.
type linkRow struct {
	Index    int32  `csv:"index"`
	Name     string `csv:"name"`
	Kind     string `csv:"kind"`
	MTU      uint32 `csv:"mtu"`
	RawFlags uint32 `csv:"raw_flags"`
	Master   int32  `csv:"master_index"`
}

func toRows(links []*iface.Link) []*linkRow {
	rows := make([]*linkRow, len(links))
	for i, l := range links {
		rows[i] = &linkRow{
			Index:    l.Attrs.Index,
			Name:     l.Attrs.Name,
			Kind:     l.Kind.String(),
			MTU:      l.Attrs.MTU,
			RawFlags: l.Attrs.RawFlags,
			Master:   l.Attrs.MasterIndex,
		}
	}
	return rows
}

func writeCSV(links []*iface.Link, w io.Writer) error {
	return gocsv.Marshal(toRows(links), w)
}

func main() {
	if len(os.Args) > 1 {
		logFatal("linkcsv takes no command-line arguments.")
	}

	h := rtnl.NewHandle()
	defer h.Close()

	links, err := h.LinkList()
	if err != nil {
		logFatal(err)
	}
	if err := writeCSV(links, os.Stdout); err != nil {
		logFatal(err)
	}
}
