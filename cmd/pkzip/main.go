// Command pkzip is a small CLI over the pkzip archive engine: list,
// extract, add, and delete entries in a classic PKWARE ZIP file.
package main

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/spf13/afero"

	"github.com/gopkzip/pkzip"
)

func main() {
	optTable := flag.Bool("t", false, "display table of contents")
	optExtract := flag.Bool("x", false, "extract a file (or, if no file is specified, extract all files)")
	optAdd := flag.Bool("r", false, "add a file to the archive")
	optDelete := flag.Bool("d", false, "delete a file from the archive")
	flag.Parse()
	args := flag.Args()

	if len(args) == 0 || flag.NFlag() != 1 {
		fmt.Println("Usage: pkzip {-d|-r|-t|-x} ARCHIVE [FILE ...]")
		os.Exit(2)
	}

	fs := afero.NewOsFs()
	archivePath := args[0]

	mode := pkzip.ModeUpdate
	if *optTable || *optExtract {
		mode = pkzip.ModeRead
	}

	var zf *pkzip.Archive
	var err error
	if *optAdd {
		if _, statErr := fs.Stat(archivePath); statErr != nil && errors.Is(statErr, os.ErrNotExist) {
			zf, err = pkzip.Open(fs, archivePath, pkzip.ModeCreate)
		} else {
			zf, err = pkzip.Open(fs, archivePath, pkzip.ModeUpdate)
		}
	} else {
		zf, err = pkzip.Open(fs, archivePath, mode)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer zf.Close()

	switch {
	case *optTable:
		if err := display(os.Stdout, zf); err != nil {
			fail(err)
		}
	case *optExtract:
		if err := extract(zf, fs, args[1:]); err != nil {
			fail(err)
		}
	case *optAdd:
		for _, arg := range args[1:] {
			if _, err := zf.AddFile(fs, arg, arg, pkzip.MethodStore, pkzip.DefaultBufferSize, nil); err != nil {
				fail(err)
			}
		}
	case *optDelete:
		for _, arg := range args[1:] {
			entry, err := zf.Lookup(arg)
			if err != nil {
				fail(err)
			}
			if entry == nil {
				fail(fmt.Errorf("pkzip: %s: no such entry", arg))
			}
			if err := zf.RemoveEntry(entry, pkzip.DefaultBufferSize, nil); err != nil {
				fail(err)
			}
		}
	}
}

func display(out *os.File, zf *pkzip.Archive) error {
	entries, err := zf.Entries()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Archive: %s\n", zf.Path())
	w := new(tabwriter.Writer)
	w.Init(out, 8, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Length\tMethod\tSize\tCmpr\tDate\tTime\tCRC-32\tName\t")
	fmt.Fprintln(w, "------\t------\t------\t------\t------\t------\t------\t------\t")
	for _, e := range entries {
		pct := 0
		if e.UncompressedSize() > 0 {
			pct = int(math.Floor(float64(e.CompressedSize()) / float64(e.UncompressedSize()) * 100))
		}
		mt := e.ModTime()
		fmt.Fprintf(w, "%d\t%s\t%d\t%d%%\t%s\t%s\t%x\t%s\t\n",
			e.UncompressedSize(),
			e.CompressionMethod(),
			e.CompressedSize(),
			pct,
			mt.Format("2006-01-02"),
			mt.Format("15:04"),
			e.CRC32(),
			e.Path())
	}
	return w.Flush()
}

func extract(zf *pkzip.Archive, fs afero.Fs, names []string) error {
	if len(names) == 0 {
		entries, err := zf.Entries()
		if err != nil {
			return err
		}
		for _, e := range entries {
			if _, err := zf.ExtractToPath(e, fs, e.Path(), pkzip.DefaultBufferSize, nil); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		entry, err := zf.Lookup(name)
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("pkzip: %s: no such entry", name)
		}
		if _, err := zf.ExtractToPath(entry, fs, entry.Path(), pkzip.DefaultBufferSize, nil); err != nil {
			return err
		}
	}
	return nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
