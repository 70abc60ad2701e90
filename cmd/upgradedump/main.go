// Command upgradedump prints the objects stored in upgrade files, optionally
// archiving and removing the files afterwards.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/andreyvit/infolist"
	"github.com/andreyvit/infolist/archive"
	"github.com/andreyvit/infolist/config"
	"github.com/andreyvit/infolist/export"
	"github.com/andreyvit/infolist/upgrade"
)

var errCanceled = errors.New("canceled")

type options struct {
	configFile string
	dataDir    string
	format     string
	mmap       bool
	archive    string
	remove     bool
	list       bool
	names      []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var o options
	flags := flag.NewFlagSet("upgradedump", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&o.configFile, "config", "", "TOML or YAML config `file`")
	flags.StringVar(&o.dataDir, "data-dir", "", "directory with upgrade files (overrides config)")
	flags.StringVar(&o.format, "format", "text", "output format: text, json, cbor or msgpack")
	flags.BoolVar(&o.mmap, "mmap", false, "map files into memory instead of buffered reads")
	flags.StringVar(&o.archive, "archive", "", "archive read files into this bbolt `db` (overrides config)")
	flags.BoolVar(&o.remove, "remove", false, "delete all upgrade files in the data dir once every file was read")
	flags.BoolVar(&o.list, "list", false, "list archive entries and exit")
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: upgradedump [options] [name-or-path...]\n\nOptions:\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	o.names = flags.Args()
	return &o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg := config.Default()
	if o.configFile != "" {
		cfg, err = config.Load(o.configFile)
		if err != nil {
			fmt.Fprintf(stderr, "upgradedump: %v\n", err)
			return 2
		}
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if o.archive != "" {
		cfg.Archive.Path = o.archive
	}
	if o.mmap {
		cfg.Mmap = true
	}
	format, err := export.ParseFormat(o.format)
	if err != nil {
		fmt.Fprintf(stderr, "upgradedump: %v\n", err)
		return 2
	}
	logger := cfg.Logger(stderr)

	var arch *archive.Archive
	if cfg.Archive.Path != "" {
		arch, err = archive.Open(cfg.Archive.Path, cfg.ArchiveOptions(logger))
		if err != nil {
			fmt.Fprintf(stderr, "upgradedump: %v\n", err)
			return 1
		}
		defer arch.Close()
	}

	if o.list {
		if arch == nil {
			fmt.Fprintf(stderr, "upgradedump: -list needs an archive\n")
			return 2
		}
		ents, err := arch.Entries()
		if err != nil {
			fmt.Fprintf(stderr, "upgradedump: %v\n", err)
			return 1
		}
		for _, e := range ents {
			fmt.Fprintln(stdout, e)
		}
		return 0
	}

	names := o.names
	if len(names) == 0 {
		names = []string{cfg.Name}
	}

	enc := export.NewEncoder(stdout, format)
	reg := infolist.NewRegistry()
	defer reg.Close()

	failed := false
	for _, name := range names {
		path := resolve(cfg.DataDir, name)
		objects, err := dump(ctx, path, cfg, logger, reg, enc, format, stdout)
		if err != nil {
			failed = true
			fmt.Fprintf(stderr, "upgradedump: %v\n", err)
		}
		// nothing to archive when the file is not there
		if arch != nil && !errors.Is(err, fs.ErrNotExist) {
			if _, aerr := arch.Store(path, archive.Status{Objects: objects, Err: err}); aerr != nil {
				failed = true
				fmt.Fprintf(stderr, "upgradedump: %v\n", aerr)
			}
		}
		if errors.Is(err, errCanceled) {
			return 1
		}
	}
	if failed {
		return 1
	}

	if o.remove {
		removed, err := upgrade.RemoveFiles(ctx, cfg.DataDir, logger)
		for _, name := range removed {
			logger.LogAttrs(ctx, slog.LevelInfo, "upgradedump: removed", slog.String("file", name))
		}
		if err != nil {
			fmt.Fprintf(stderr, "upgradedump: %v\n", err)
			return 1
		}
	}
	return 0
}

// resolve treats bare names as upgrade file names inside dataDir.
func resolve(dataDir, name string) string {
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') || strings.HasSuffix(name, upgrade.FileSuffix) {
		return name
	}
	return upgrade.FileName(dataDir, name)
}

func dump(ctx context.Context, path string, cfg *config.Config, logger *slog.Logger, reg *infolist.Registry, enc *export.Encoder, format export.Format, stdout io.Writer) (int, error) {
	uo := cfg.UpgradeOptions(logger)
	uo.Context = ctx
	uo.Registry = reg

	r, err := upgrade.Open(path, func(r *upgrade.Reader, kind int32, l *infolist.InfoList) error {
		if ctx.Err() != nil {
			return errCanceled
		}
		return enc.EncodeInfoList(kind, l)
	}, uo)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	if format == export.Text {
		fmt.Fprintf(stdout, "# %s\n", path)
	}
	err = r.Run()
	return r.Objects(), err
}
