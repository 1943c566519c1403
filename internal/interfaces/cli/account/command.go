// Package account implements the account-related CLI commands.
package account

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/typeworld/typeworld-go/internal/interfaces/cli"
)

var (
	configPath string
	password   string
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the linked user account",
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	login := &cobra.Command{
		Use:   "login <email>",
		Short: "Log in and link this app instance to an account",
		Args:  cobra.ExactArgs(1),
		RunE:  runLogin,
	}
	login.Flags().StringVarP(&password, "password", "p", "", "Account password (prompted when omitted)")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Unlink this app instance from its account",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the linked account",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	instances := &cobra.Command{
		Use:   "instances",
		Short: "List the account's app instances",
		Args:  cobra.NoArgs,
		RunE:  runInstances,
	}

	sync := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile subscriptions and settings with the account",
		Args:  cobra.NoArgs,
		RunE:  runSync,
	}

	cmd.AddCommand(login, logout, status, instances, sync)
	return cmd
}

func readPassword(prompt string) (string, error) {
	if password != "" {
		return password, nil
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	pw, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	if err := app.Client.LogInUserAccount(cmd.Context(), args[0], pw); err != nil {
		return err
	}

	fmt.Printf("Linked account %s (%s)\n", app.Client.UserName(), app.Client.UserEmail())
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Client.User() == "" {
		fmt.Println("No account linked.")
		return nil
	}
	if err := app.Client.UnlinkUser(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Account unlinked. Protected fonts were uninstalled.")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	c := app.Client
	if c.User() == "" {
		fmt.Println("No account linked.")
		return nil
	}

	fmt.Printf("User:           %s\n", c.UserName())
	fmt.Printf("Email:          %s (verified: %v)\n", c.UserEmail(), c.EmailIsVerified())
	fmt.Printf("Plan:           %s\n", c.AccountStatus())
	fmt.Printf("Revoked:        %v\n", c.AppInstanceIsRevoked())
	if sync := c.LastServerSync(); !sync.IsZero() {
		fmt.Printf("Last sync:      %s\n", sync.Format(time.RFC1123))
	}
	return nil
}

func runInstances(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	instances, err := app.Client.AppInstances(cmd.Context())
	if err != nil {
		return err
	}

	self := app.Client.AnonymousAppID()
	for _, instance := range instances {
		marker := " "
		if instance.AnonymousAppID == self {
			marker = "*"
		}
		state := "active"
		if instance.Revoked {
			state = "revoked"
		}
		fmt.Printf("%s %s  %s  %s (%s)\n",
			marker, instance.AnonymousAppID, state, instance.MachineName, instance.MachineModel)
	}
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Client.DownloadSubscriptions(cmd.Context()); err != nil {
		return err
	}
	if err := app.Client.DownloadSettings(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Synchronized with account.")
	return nil
}
