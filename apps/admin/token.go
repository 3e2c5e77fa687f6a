package main

import (
	"fmt"

	echoapi "github.com/trezcool/pogil/apps/api/echo"
	"github.com/trezcool/pogil/core"
)

func (cli *commandLine) tokenCmd(args []string) error {
	fs := cli.newFlagSet("token")
	userID := fs.Int("user", 0, "user ID (required)")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address, receives submission receipts")
	teacher := fs.Bool("teacher", false, "grant teacher access")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *userID <= 0 {
		return core.NewFieldError("user", "this field is required")
	}

	token, err := echoapi.GenerateToken(echoapi.NewClaims(*userID, *name, *email, *teacher))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cli.out, token)
	return err
}
