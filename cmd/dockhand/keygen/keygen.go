// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package keygen implements the keygen command: generating the age
// keypair the sealed Portainer token store is configured with.
package keygen

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/dockhand/cmd/dockhand/cli"
	"github.com/bureau-foundation/dockhand/lib/sealed"
)

type keygenParams struct {
	Output string `flag:"output,o" desc:"path to write the identity (private key) to"`
}

// Command returns the "keygen" command.
func Command() *cli.Command {
	var params keygenParams

	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate an age keypair for the sealed token store",
		Usage:   "dockhand keygen --output <identity-file>",
		Description: `Generate an x25519 age keypair.

The identity (private key) is written to --output with 0600
permissions as a single line, the format the console's
token_store.identity_file expects. The recipient (public key) is
printed to stdout for the token_store.recipient field. An existing
identity file is never overwritten.`,
		Examples: []cli.Example{
			{
				Description: "Generate the token store keypair",
				Command:     "dockhand keygen --output /etc/dockhand/tokenstore.key",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("keygen", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			if params.Output == "" {
				return fmt.Errorf("usage: dockhand keygen --output <identity-file>")
			}
			return runKeygen(params)
		},
	}
}

func runKeygen(params keygenParams) error {
	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		return err
	}
	defer keypair.Close()

	file, err := os.OpenFile(params.Output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s already exists; refusing to overwrite an identity", params.Output)
		}
		return fmt.Errorf("creating identity file: %w", err)
	}

	// Two writes rather than an append: concatenating would copy the
	// key out of its locked buffer onto the heap.
	if _, err := file.Write(keypair.PrivateKey.Bytes()); err != nil {
		file.Close()
		return fmt.Errorf("writing identity: %w", err)
	}
	if _, err := io.WriteString(file, "\n"); err != nil {
		file.Close()
		return fmt.Errorf("writing identity: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing identity file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "identity written to %s\n", params.Output)
	fmt.Println(keypair.PublicKey)
	return nil
}
