package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/upb/coffee-main-api/services"
)

func newHashPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for a credential store entry",
		Long: `Print a bcrypt hash for a credential store entry.

The password is read from the first argument, or from the first line of
STDIN when no argument is given. The cost defaults to PASSWORD_HASH_COST so
unknown-user logins are checked at the same cost as real accounts. The hash is written to STDOUT and can be
used as MEMORY_USER_PASSWORD_HASH, in a credential file, or in the
credentials table.

Example:
  main-api hash-password s3cret
  echo -n s3cret | main-api hash-password --cost 12`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cost, _ := cmd.Flags().GetInt("cost")

			var password string
			if len(args) > 0 {
				password = args[0]
			} else {
				line, err := readPassword(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = line
			}

			hash, err := services.HashPassword(password, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().Int("cost", defaultHashCost(), "bcrypt cost factor")
	return cmd
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func defaultHashCost() int {
	if cost, err := strconv.Atoi(os.Getenv("PASSWORD_HASH_COST")); err == nil {
		return cost
	}
	return bcrypt.DefaultCost
}
