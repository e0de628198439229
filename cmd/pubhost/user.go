package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/eringen/pubhost"
)

var (
	userEmail string
	userName  string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	Long: `Create an account with the given email and name. The password is
read from the terminal, or from the first line of stdin when it is not a
terminal.`,
	RunE: runUserCreate,
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Reset the password of an account",
	RunE:  runUserPasswd,
}

func init() {
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "account email (required)")
	userCreateCmd.Flags().StringVar(&userName, "name", "", "display name (required)")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("name")

	userPasswdCmd.Flags().StringVar(&userEmail, "email", "", "account email (required)")
	_ = userPasswdCmd.MarkFlagRequired("email")

	userCmd.AddCommand(userCreateCmd, userPasswdCmd)
}

func openStore() (*pubhost.Store, error) {
	cfg, err := pubhost.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return pubhost.NewStore(cfg.DatabasePath)
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}
	form := pubhost.SignUpForm{Email: strings.TrimSpace(userEmail), Name: strings.TrimSpace(userName), Password: password}
	if err := checkForm(&form); err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	u, err := store.CreateUser(cmd.Context(), form.Email, form.Name, form.Password)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", u.Email, u.ID)
	return nil
}

func runUserPasswd(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	u, err := store.GetUserByEmail(cmd.Context(), userEmail)
	if err != nil {
		return fmt.Errorf("find %s: %w", userEmail, err)
	}
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}
	form := pubhost.SignUpForm{Email: u.Email, Name: u.Name, Password: password}
	if err := checkForm(&form); err != nil {
		return err
	}
	if err := store.SetPassword(cmd.Context(), u.ID, password); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", u.Email)
	return nil
}

// checkForm applies the sign-up validation rules and formats field errors.
func checkForm(form *pubhost.SignUpForm) error {
	errs := pubhost.FieldErrorsFrom(pubhost.NewFormValidator().Validate(form))
	if len(errs) == 0 {
		return nil
	}
	var b strings.Builder
	for field, msg := range errs {
		fmt.Fprintf(&b, "%s: %s; ", field, msg)
	}
	return errors.New(strings.TrimSuffix(b.String(), "; "))
}

func readPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	out := cmd.ErrOrStderr()
	fmt.Fprint(out, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	fmt.Fprint(out, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
