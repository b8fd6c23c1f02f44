// Package main provides the CLI entry point for the mall admin console.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/erp/mall-admin/internal/domain/shared"
	"github.com/erp/mall-admin/internal/infrastructure/config"
	"github.com/erp/mall-admin/internal/infrastructure/httpclient"
	"github.com/erp/mall-admin/internal/interfaces/cli"
	"github.com/mattn/go-isatty"
)

// Version information (populated at build time)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// CLI flags
var (
	configPath  string
	baseURL     string
	metricsAddr string
	assumeYes   bool
	noColor     bool
	verbose     bool
	showVersion bool
)

func init() {
	// Configuration
	flag.StringVar(&configPath, "config", "", "Path to the configuration file")
	flag.StringVar(&configPath, "c", "", "Path to the configuration file (shorthand)")
	flag.StringVar(&baseURL, "api", "", "Override the mall-admin API base URL")

	// Utility flags
	flag.StringVar(&metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address (e.g., :9090)")
	flag.BoolVar(&assumeYes, "yes", false, "Answer yes to every confirmation")
	flag.BoolVar(&assumeYes, "y", false, "Answer yes to every confirmation (shorthand)")
	flag.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.BoolVar(&verbose, "v", false, "Enable debug logging (shorthand)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	// Custom usage
	flag.Usage = printUsage
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Mall Admin - Catalog Administration Console

USAGE:
    mall-admin [options] <command> [arguments]

COMMANDS:
    login -u <user> -p <password>      Sign in and keep the session
    logout                             Drop the session and every cached query
    whoami                             Show the signed-in operator
    list <entity> [filters]            Show one page of an entity list
    batch <entity> <op> <ids...>       Apply a batch operation to rows of the page
    delete <entity> <ids...>           Delete rows
    get <entity> <id>                  Print one record as YAML
    create <entity> -f <file>          Create a record from a YAML or JSON file
    update <entity> <id> -f <file>     Change the fields present in the file
    ops <entity>                       List the batch operations of an entity

ENTITIES:
    %s

LIST FILTERS:
    -page <n> -size <n>                Page number and page size
    -keyword <text>                    brand, product
    -sn <text> -brand <id>             product
    -publish <0|1> -verify <0|1>       product
    -category-path <id,id>             product, e.g. 22,25
    -parent <id>                       productCategory (0 lists the top level)
    -cid <id> -type <0|1>              productAttribute (0 spec, 1 param)

OPTIONS:
    -config, -c <path>    Configuration file (default ./mall-admin.yaml or ~/.mall-admin/)
    -api <url>            Override the API base URL
    -metrics-addr <addr>  Expose Prometheus metrics while the command runs
    -yes, -y              Answer yes to every confirmation
    -no-color             Disable colored output
    -verbose, -v          Enable debug logging
    -version              Show version information
    -help, -h             Show this help message

ENVIRONMENT:
    Every configuration key can be set as MALL_ADMIN_<SECTION>_<KEY>,
    e.g. MALL_ADMIN_API_BASE_URL or MALL_ADMIN_SESSION_BACKEND.

EXAMPLES:
    # Sign in
    mall-admin login -u admin -p macro123

    # Second page of brands matching "apple"
    mall-admin list brand -keyword apple -page 2

    # Products of the smartphone category
    mall-admin list product -category-path 22,25

    # Take two products off the shelf without prompting
    mall-admin -y batch product unpublish 31 34

    # Edit a brand
    mall-admin get brand 3 > brand.yaml
    mall-admin update brand 3 -f brand.yaml

`, strings.Join(cli.Entities(), ", "))
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Printf("mall-admin %s (built %s, commit %s)\n", version, buildTime, gitCommit)
		os.Exit(0)
	}
	if flag.NArg() == 0 {
		printUsage()
		os.Exit(2)
	}

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if baseURL != "" {
		cfg.API.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if metricsAddr != "" {
		cfg.Telemetry.MetricsAddr = metricsAddr
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := cli.Bootstrap(ctx, cfg, cli.Streams{
		In:        os.Stdin,
		Out:       os.Stdout,
		Err:       os.Stderr,
		UseColors: !noColor && isatty.IsTerminal(os.Stderr.Fd()),
		AssumeYes: assumeYes,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	err = rt.App.Run(ctx, flag.Args())
	rt.Close()
	os.Exit(exitCode(err))
}

// exitCode reports err and maps it to a process status. Errors that the
// console already showed through a notification are not printed again.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var de *shared.DomainError
	var verr *shared.ValidationError
	var be *httpclient.BusinessError
	switch {
	case errors.Is(err, cli.ErrUsage):
		fmt.Fprintf(os.Stderr, "Error: %v\n\nRun 'mall-admin -help' for usage.\n", err)
		return 2
	case errors.As(err, &verr), errors.As(err, &be),
		errors.Is(err, shared.ErrEmptySelection), errors.Is(err, shared.ErrNoBatchOperation):
	case errors.As(err, &de):
		fmt.Fprintln(os.Stderr, de.Message)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return 1
}
