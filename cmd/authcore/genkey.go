package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrymomot/authcore/pkg/secrets"
)

func runGenKey(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("genkey", flag.ContinueOnError)
	fs.SetOutput(stderr)
	export := fs.Bool("export", false, "print as an environment assignment")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := secrets.GenerateEncodedKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	if *export {
		fmt.Fprintf(stdout, "SECRETS_ENCRYPTION_KEY=%s\n", key)
		return nil
	}
	fmt.Fprintln(stdout, key)
	return nil
}
