package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yash-srivastava19/canopy/internal/auth"
)

func promptPassword(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(pass)), nil
}

func addLogin(topLevel *cobra.Command, o *rootOptions) {
	var name string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in, creating the local account on first use.",
		Example: `
canopy login --name ada
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := openRuntime(o, logOneShot)
			if err != nil {
				return err
			}
			defer r.Close()

			if name == "" {
				name = os.Getenv("USER")
			}
			first := !auth.HasAccount(r.cfg.AccountDir())
			pass, err := promptPassword("password: ")
			if err != nil {
				return err
			}
			if first {
				again, err := promptPassword("confirm password: ")
				if err != nil {
					return err
				}
				if again != pass {
					return errors.New("passwords do not match")
				}
			}

			local, err := auth.NewLocal(r.cfg.AccountDir(), r.logger)
			if err != nil {
				return err
			}
			if err := local.SignIn(name, pass); err != nil {
				return err
			}
			fmt.Println(color.GreenString("signed in as %s", name))
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Account name (default $USER).")
	topLevel.AddCommand(cmd)
}

func addLogout(topLevel *cobra.Command, o *rootOptions) {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the local session.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := openRuntime(o, logOneShot)
			if err != nil {
				return err
			}
			defer r.Close()
			if !auth.HasAccount(r.cfg.AccountDir()) {
				return errors.New("no local account")
			}
			local, err := auth.NewLocal(r.cfg.AccountDir(), r.logger)
			if err != nil {
				return err
			}
			return local.SignOut()
		},
	}
	topLevel.AddCommand(cmd)
}
