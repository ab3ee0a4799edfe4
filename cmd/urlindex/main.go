// Package main is the urlindex command-line tool.  It compiles rule files into
// indexes and checks URLs against them.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/urlindex"
	"github.com/AdguardTeam/urlindex/filecache"
	"github.com/AdguardTeam/urlindex/regexcache"
	"github.com/AdguardTeam/urlindex/rules"
	"github.com/c2h5oh/datasize"
	goFlags "github.com/jessevdk/go-flags"
	"github.com/shirou/gopsutil/v3/process"
)

// Options are the command-line arguments.
type Options struct {
	// Verbose enables debug logging.
	Verbose bool `short:"v" long:"verbose" description:"Verbose output (optional)." optional:"yes" optional-value:"true"`

	// RulesPath is the path to the YAML rule file.
	RulesPath string `short:"r" long:"rules" description:"Path to the YAML rule file. If set, the index is compiled and stored."`

	// IndexPath is the path to the index file.
	IndexPath string `short:"i" long:"index" description:"Path to the index file." required:"true"`

	// Optimize enables merging of rules when compiling.
	Optimize bool `short:"O" long:"optimize" description:"Merge rules when compiling the index." optional:"yes" optional-value:"true"`

	// All makes the tool print every matching rule.
	All bool `short:"a" long:"all" description:"Print all matching rules, not only the first one." optional:"yes" optional-value:"true"`

	// Tags are the active tags.
	Tags []string `short:"t" long:"tag" description:"Active tag. Can be specified multiple times."`

	// URLs are the URLs to check.
	URLs []string `short:"u" long:"url" description:"URL to check. Can be specified multiple times."`

	// SourceURL is the URL of the page the requests come from.
	SourceURL string `short:"s" long:"source" description:"Source URL of the requests."`

	// RequestType is the name of the type of the requests.
	RequestType string `short:"T" long:"type" description:"Request type, like script or image." default:"other"`
}

const (
	// maxIndexSize is the size limit of the index file.
	maxIndexSize = 1 * datasize.GB

	// regexCacheCount is the number of compiled patterns kept in memory.
	regexCacheCount = 1024
)

func main() {
	var opts Options
	parser := goFlags.NewParser(&opts, goFlags.Default)

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*goFlags.Error); ok && flagsErr.Type == goFlags.ErrHelp {
			os.Exit(0)
		}

		os.Exit(1)
	}

	lvl := slog.LevelInfo
	if opts.Verbose {
		lvl = slog.LevelDebug
	}

	l := slogutil.New(&slogutil.Config{
		Format: slogutil.FormatText,
		Level:  lvl,
	})

	ctx := context.Background()
	err = run(ctx, l, &opts, os.Stdout)
	if err != nil {
		l.ErrorContext(ctx, "running", slogutil.KeyError, err)

		os.Exit(1)
	}

	logMemory(ctx, l)
}

// run compiles the index if needed, loads it, and writes the results of the
// checks to w.
func run(ctx context.Context, l *slog.Logger, opts *Options, w io.Writer) (err error) {
	storageConf := &filecache.Config{
		Logger:  l.With(slogutil.KeyPrefix, "filecache"),
		Path:    opts.IndexPath,
		MaxSize: maxIndexSize,
	}
	err = storageConf.Validate()
	if err != nil {
		return fmt.Errorf("filecache config: %w", err)
	}

	storage := filecache.New(storageConf)

	if opts.RulesPath != "" {
		err = compile(ctx, l, opts, storage)
		if err != nil {
			return fmt.Errorf("compiling: %w", err)
		}
	}

	fl, err := storage.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading: %w", err)
	} else if fl == nil {
		return fmt.Errorf("loading: %w: no index at %q", errors.ErrNoValue, opts.IndexPath)
	}

	typ, ok := rules.ParseRequestType(opts.RequestType)
	if !ok {
		return fmt.Errorf("request type: %w: %q", errors.ErrBadEnumValue, opts.RequestType)
	}

	cache, err := regexcache.New(&regexcache.Config{
		Count: regexCacheCount,
	})
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	var tags *container.MapSet[string]
	if len(opts.Tags) > 0 {
		tags = container.NewMapSet(opts.Tags...)
	}

	for _, u := range opts.URLs {
		r := rules.NewRequest(u, opts.SourceURL, typ)

		var res []*urlindex.CheckResult
		if opts.All {
			res = fl.CheckAll(r, tags, cache)
		} else if cr, found := fl.Check(r, tags, cache); found {
			res = append(res, cr)
		}

		err = printResults(w, u, res)
		if err != nil {
			return fmt.Errorf("writing results: %w", err)
		}
	}

	return nil
}

// compile builds the index from the rule file and stores it.
func compile(
	ctx context.Context,
	l *slog.Logger,
	opts *Options,
	storage *filecache.Storage,
) (err error) {
	rs, err := readRuleSet(opts.RulesPath)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	c := &urlindex.Config{
		Logger:   l.With(slogutil.KeyPrefix, "urlindex"),
		Optimize: opts.Optimize,
	}
	err = c.Validate()
	if err != nil {
		return fmt.Errorf("index config: %w", err)
	}

	fl := urlindex.New(c, rs)
	l.InfoContext(
		ctx,
		"compiled index",
		"rules_in", len(rs),
		"rules_out", fl.RulesCount(),
		"size", datasize.ByteSize(len(fl.Bytes())),
	)

	return storage.Store(ctx, fl)
}

// printResults writes the results of checking u to w.
func printResults(w io.Writer, u string, res []*urlindex.CheckResult) (err error) {
	if len(res) == 0 {
		_, err = fmt.Fprintf(w, "%s\tno match\n", u)

		return err
	}

	for _, cr := range res {
		verdict := "block"
		if cr.IsException() {
			verdict = "allow"
		}

		_, err = fmt.Fprintf(w, "%s\t%s\t%q\t%q\n", u, verdict, cr.RuleText, cr.Modifier)
		if err != nil {
			return err
		}
	}

	return nil
}

// logMemory logs the memory usage of the process.
func logMemory(ctx context.Context, l *slog.Logger) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		l.WarnContext(ctx, "getting process", slogutil.KeyError, err)

		return
	}

	minfo, err := proc.MemoryInfo()
	if err != nil {
		l.WarnContext(ctx, "getting memory info", slogutil.KeyError, err)

		return
	}

	l.DebugContext(ctx, "memory usage", "rss", datasize.ByteSize(minfo.RSS))
}
