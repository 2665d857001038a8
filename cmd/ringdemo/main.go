// Command ringdemo places a handful of files on seven storage nodes with
// modulo hashing and with the consistent hashing ring, then scales the
// cluster from five to seven nodes and reports which files had to move.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"ringstore/internal/modulo"
	"ringstore/internal/placement"
	"ringstore/internal/ring"
)

var storageNodes = []ring.Node{
	{ID: "A", Addr: "239.67.52.72"},
	{ID: "B", Addr: "137.70.131.229"},
	{ID: "C", Addr: "98.5.87.182"},
	{ID: "D", Addr: "11.225.158.95"},
	{ID: "E", Addr: "203.187.116.210"},
	{ID: "F", Addr: "107.117.238.203"},
	{ID: "G", Addr: "27.161.219.131"},
}

func main() {
	slots := flag.Int("slots", ring.DefaultSlots, "ring hash space size")
	files := flag.String("files", "f1.txt,f2.txt,f3.txt,f4.txt,f5.txt", "comma-separated file names")
	flag.Parse()

	if err := run(os.Stdout, *slots, strings.Split(*files, ",")); err != nil {
		log.Fatal(err)
	}
}

func run(w io.Writer, slots int, files []string) error {
	small, large := storageNodes[:5], storageNodes

	fmt.Fprintf(w, "Modulo hashing, %d -> %d nodes\n", len(small), len(large))
	before, err := placement.Assign(modulo.NewTable(small), files)
	if err != nil {
		return err
	}
	after, err := placement.Assign(modulo.NewTable(large), files)
	if err != nil {
		return err
	}
	report(w, files, before, after)

	r, err := ring.NewRing(slots)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nConsistent hashing (%d slots), %d -> %d nodes\n", slots, len(small), len(large))
	for _, n := range small {
		if _, err := r.AddNode(n); err != nil {
			return fmt.Errorf("add %s: %w", n.ID, err)
		}
	}
	before, err = placement.Assign(r, files)
	if err != nil {
		return err
	}
	for _, n := range large[len(small):] {
		if _, err := r.AddNode(n); err != nil {
			return fmt.Errorf("add %s: %w", n.ID, err)
		}
	}
	after, err = placement.Assign(r, files)
	if err != nil {
		return err
	}
	for _, m := range r.Members() {
		fmt.Fprintf(w, "  node %s at slot %d\n", m.Node.ID, m.Position)
	}
	report(w, files, before, after)
	return nil
}

func report(w io.Writer, files []string, before, after placement.Assignment) {
	for _, f := range files {
		fmt.Fprintf(w, "  file %s resides on node %s, then %s\n", f, before[f].ID, after[f].ID)
	}
	fmt.Fprintf(w, "  %d of %d files moved\n", len(placement.Moved(before, after)), len(files))
}
