// Package status implements the top-level status CLI command.
package status

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/typeworld/typeworld-go/internal/interfaces/cli"
)

var configPath string

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show client status",
		Args:  cobra.NoArgs,
		RunE:  run,
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	c := app.Client

	fmt.Printf("App ID:          %s\n", c.AppID())
	fmt.Printf("Instance:        %s\n", c.AnonymousAppID())
	fmt.Printf("Online:          %v\n", c.Online())
	fmt.Printf("Fonts folder:    %s\n", c.FontsDir())

	if c.User() != "" {
		fmt.Printf("Account:         %s (%s)\n", c.UserName(), c.UserEmail())
		if sync := c.LastServerSync(); !sync.IsZero() {
			fmt.Printf("Last sync:       %s\n", sync.Format(time.RFC1123))
		}
	} else {
		fmt.Println("Account:         not linked")
	}

	subs, err := c.Subscriptions()
	if err != nil {
		return err
	}
	fmt.Printf("Subscriptions:   %d\n", len(subs))

	if pending := c.PendingCommands(); len(pending) > 0 {
		fmt.Println("Queued commands:")
		for command, params := range pending {
			fmt.Printf("    %s (%d)\n", command, len(params))
		}
	}
	if problems := c.SyncProblems(); len(problems) > 0 {
		fmt.Println("Sync problems:")
		for _, problem := range problems {
			fmt.Printf("    %s\n", problem)
		}
	}
	return nil
}
