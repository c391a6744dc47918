// Command gsloc looks up the location of WiFi access points by MAC address.
//
//	gsloc [flags] [mac ...]
//
// MACs are taken from -i when given, then from the arguments, then from
// stdin, one per line. Results are printed one per line, or written as a
// GeoJSON FeatureCollection with -o.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gsloc/gsloc"
	"github.com/gsloc/gsloc/config"
	"github.com/gsloc/gsloc/geojson"
	"github.com/gsloc/gsloc/logging"
)

type options struct {
	input      string
	output     string
	configPath string
	verbose    bool
	macs       []string
}

func main() {
	logging.ConfigureRuntime()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "gsloc: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	if err := logging.ConfigureOutput(cfg.Log, stderr); err != nil {
		return err
	}

	macs, err := collectMACs(opts, stdin)
	if err != nil {
		return err
	}
	if len(macs) == 0 {
		return errors.New("no MAC addresses to query")
	}

	client, err := gsloc.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	records, queryErr := client.QueryEach(ctx, macs)

	if opts.output != "" {
		if err := geojson.WriteFile(opts.output, gsloc.Features(records)); err != nil {
			return errors.Join(queryErr, err)
		}
		log.Info().Int("features", len(records)).Str("path", opts.output).Msg("wrote results")
	} else {
		for _, r := range records {
			fmt.Fprintln(stdout, r)
		}
	}
	return queryErr
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("gsloc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	for _, name := range []string{"i", "input"} {
		fs.StringVar(&opts.input, name, "", "file with MAC addresses to query, one per line")
	}
	for _, name := range []string{"o", "output"} {
		fs.StringVar(&opts.output, name, "", "write results to this file as GeoJSON")
	}
	for _, name := range []string{"c", "config"} {
		fs.StringVar(&opts.configPath, name, "", "TOML configuration file")
	}
	for _, name := range []string{"v", "verbose"} {
		fs.BoolVar(&opts.verbose, name, false, "enable debug logging")
	}
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: gsloc [flags] [mac ...]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.macs = fs.Args()
	return opts, nil
}

func collectMACs(opts options, stdin io.Reader) ([]string, error) {
	switch {
	case opts.input != "":
		f, err := os.Open(opts.input)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		return readMACs(f)
	case len(opts.macs) > 0:
		return opts.macs, nil
	default:
		return readMACs(stdin)
	}
}

// readMACs returns one trimmed MAC per non-blank line.
func readMACs(r io.Reader) ([]string, error) {
	var macs []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			macs = append(macs, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read MAC addresses: %w", err)
	}
	return macs, nil
}
