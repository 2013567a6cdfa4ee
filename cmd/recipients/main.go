// Command recipients checks a recipient CSV offline with the same rules the
// server applies on upload.
//
//	recipients check contacts.csv
//
// It prints the load counts and writes "contacts - failed.csv" next to the
// input when rows were rejected.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/bulkmail/internal/core"
	"github.com/JonMunkholm/bulkmail/internal/logging"
)

func main() {
	_ = godotenv.Load()

	level := flag.String("log-level", envOr("LOG_LEVEL", "warn"), "log level: debug, info, warn, error")
	noExport := flag.Bool("no-export", false, "do not write the failed-rows file")
	flag.Usage = usage
	flag.Parse()

	logging.Setup(*level, "text")

	if flag.NArg() != 2 || flag.Arg(0) != "check" {
		usage()
		os.Exit(2)
	}

	if err := check(os.Stdout, flag.Arg(1), !*noExport); err != nil {
		slog.Error("check failed", "file", flag.Arg(1), "error", err)
		fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] check <file.csv>\n", filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// check loads path into a fresh store and reports the result to out.
func check(out io.Writer, path string, export bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	store := core.NewRecipientStore()
	res, err := store.LoadFromParse(f)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "rows:       %d\n", res.Rows)
	fmt.Fprintf(out, "valid:      %d\n", res.Valid)
	fmt.Fprintf(out, "invalid:    %d\n", res.Invalid)
	fmt.Fprintf(out, "duplicates: %d\n", res.Duplicates)
	fmt.Fprintf(out, "recipients: %d\n", res.Stored)

	invalid := store.Invalid()
	if len(invalid) == 0 || !export {
		return nil
	}

	failedPath := filepath.Join(filepath.Dir(path), core.FailedFileName(filepath.Base(path)))
	ff, err := os.Create(failedPath)
	if err != nil {
		return err
	}
	if err := core.WriteInvalidCSV(ff, invalid); err != nil {
		ff.Close()
		return err
	}
	if err := ff.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "failed rows written to %s\n", failedPath)
	return nil
}
