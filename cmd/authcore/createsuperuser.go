package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrymomot/authcore/pkg/config"
	"github.com/dmitrymomot/authcore/svc/auth"
)

type superuserFlags struct {
	email     string
	password  string
	firstName string
	lastName  string
}

func parseSuperuserFlags(args []string, stdin io.Reader, stdout, stderr io.Writer) (superuserFlags, error) {
	var f superuserFlags
	fs := flag.NewFlagSet("createsuperuser", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.email, "email", "", "administrator email")
	fs.StringVar(&f.password, "password", "", "administrator password (prompted when empty)")
	fs.StringVar(&f.firstName, "first-name", "Admin", "first name")
	fs.StringVar(&f.lastName, "last-name", "", "last name")
	if err := fs.Parse(args); err != nil {
		return f, err
	}

	in := bufio.NewScanner(stdin)
	prompt := func(label string, dst *string) error {
		if *dst != "" {
			return nil
		}
		fmt.Fprintf(stdout, "%s: ", label)
		if !in.Scan() {
			if err := in.Err(); err != nil {
				return err
			}
			return fmt.Errorf("%s is required", strings.ToLower(label))
		}
		*dst = strings.TrimSpace(in.Text())
		return nil
	}
	if err := errors.Join(prompt("Email", &f.email), prompt("Password", &f.password)); err != nil {
		return f, err
	}
	return f, nil
}

func runCreateSuperuser(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	f, err := parseSuperuserFlags(args, stdin, stdout, stderr)
	if err != nil {
		return err
	}

	var (
		app     appConfig
		authCfg auth.Config
	)
	if err := errors.Join(config.Load(&app), config.Load(&authCfg)); err != nil {
		return err
	}
	log := newLogger(app)

	db, err := openBackend(ctx, app.StorageDriver, log)
	if err != nil {
		return err
	}
	defer db.close()
	if err := db.migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	svc, err := newAuthServices(db.repo, authCfg, noNotifier, log)
	if err != nil {
		return err
	}
	identity, err := svc.accounts.CreateSuperuser(ctx, auth.SuperuserInput{
		Email:     f.email,
		Password:  f.password,
		FirstName: f.firstName,
		LastName:  f.lastName,
	})
	if errors.Is(err, auth.ErrAccountAlreadyExists) {
		fmt.Fprintf(stdout, "User with email %s already exists.\n", f.email)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Superuser %s created with id %d.\n", identity.Email, identity.ID)
	return nil
}
