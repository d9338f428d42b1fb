// Command dqcheck validates a CSV file against a rule set and prints the
// quality report as JSON.
//
// Usage:
//
//	dqcheck -data contacts.csv [-rules rules.yaml] [-profile] [-duplicates]
//	        [-fields Email,Name] [-corrections] [-source name] [-max-rows n]
//
// Logs go to stderr. The exit status is 0 when every row is valid, 1 when
// at least one row is invalid and 2 on usage or input errors.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/dataquality/internal/logging"
	"github.com/JonMunkholm/dataquality/internal/quality"
	"github.com/JonMunkholm/dataquality/internal/rules"
	"github.com/JonMunkholm/dataquality/internal/service"
)

const (
	exitValid   = 0
	exitInvalid = 1
	exitError   = 2
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	rulesFile   string
	dataFile    string
	source      string
	profile     bool
	duplicates  bool
	fields      string
	corrections bool
	maxRows     int
	logLevel    string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("dqcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.rulesFile, "rules", "", "YAML rule file (default: built-in rules)")
	fs.StringVar(&opts.dataFile, "data", "", `CSV file to validate, "-" for stdin`)
	fs.StringVar(&opts.source, "source", "", "data source name in the report (default: file name)")
	fs.BoolVar(&opts.profile, "profile", false, "include a data profile")
	fs.BoolVar(&opts.duplicates, "duplicates", false, "detect duplicate rows")
	fs.StringVar(&opts.fields, "fields", "", "comma-separated fields compared for duplicates (default: all)")
	fs.BoolVar(&opts.corrections, "corrections", false, "include correction suggestions")
	fs.IntVar(&opts.maxRows, "max-rows", service.DefaultMaxRows, "largest accepted row count")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.dataFile == "" {
		return opts, errors.New("-data is required")
	}
	if opts.maxRows <= 0 {
		return opts, errors.New("-max-rows must be positive")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, "dqcheck:", err)
		}
		return exitError
	}

	slog.SetDefault(logging.New(stderr, opts.logLevel, "text"))

	report, err := check(ctx, opts, stdin)
	if err != nil {
		slog.Error("check failed", "error", err)
		if service.IsUserFacing(err) {
			fmt.Fprintln(stderr, "dqcheck:", service.FormatUserError(err))
		}
		return exitError
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintln(stderr, "dqcheck: write report:", err)
		return exitError
	}

	if report.InvalidRows > 0 {
		return exitInvalid
	}
	return exitValid
}

func check(ctx context.Context, opts options, stdin io.Reader) (*quality.Report, error) {
	source := rules.Source(rules.Defaults())
	if opts.rulesFile != "" {
		loaded, err := rules.LoadFile(opts.rulesFile)
		if err != nil {
			return nil, err
		}
		source = loaded
	}

	input := stdin
	name := opts.source
	if opts.dataFile != "-" {
		f, err := os.Open(opts.dataFile)
		if err != nil {
			return nil, fmt.Errorf("open data file: %w", err)
		}
		defer f.Close()
		input = f
		if name == "" {
			name = filepath.Base(opts.dataFile)
		}
	}

	svc := service.New(source, service.Config{
		MaxRows:       opts.maxRows,
		MaxConcurrent: 1,
		MaxWait:       time.Second,
	})

	return svc.ValidateCSV(ctx, input, service.Request{
		ValidateRequest: quality.ValidateRequest{
			DataSourceName:       name,
			DetectDuplicates:     opts.duplicates,
			DuplicateCheckFields: splitFields(opts.fields),
			GenerateProfile:      opts.profile,
			IncludeCorrections:   opts.corrections,
		},
	})
}

func splitFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
