// Command authcore serves the account and integration API and carries the
// operational subcommands that go with it.
//
//	authcore [serve]          run the HTTP API (default)
//	authcore migrate          apply database migrations and exit
//	authcore createsuperuser  create or promote an administrator
//	authcore genkey           print a new SECRETS_ENCRYPTION_KEY
//
// Configuration is read from the environment and an optional .env file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "authcore: %v\n", err)
		}
		os.Exit(1)
	}
}

const usageText = `Usage: authcore <command> [flags]

Commands:
  serve            run the HTTP API (default)
  migrate          apply database migrations and exit
  createsuperuser  create or promote an administrator
  genkey           print a new SECRETS_ENCRYPTION_KEY
`

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return runServe(ctx, args, stderr)
	case "migrate":
		return runMigrate(ctx, args, stdout, stderr)
	case "createsuperuser":
		return runCreateSuperuser(ctx, args, stdin, stdout, stderr)
	case "genkey":
		return runGenKey(args, stdout, stderr)
	case "help":
		fmt.Fprint(stdout, usageText)
		return nil
	default:
		fmt.Fprint(stderr, usageText)
		return fmt.Errorf("unknown command %q", cmd)
	}
}
