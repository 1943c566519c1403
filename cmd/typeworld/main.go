package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/typeworld/typeworld-go/internal/interfaces/cli/account"
	configCmd "github.com/typeworld/typeworld-go/internal/interfaces/cli/config"
	"github.com/typeworld/typeworld-go/internal/interfaces/cli/daemon"
	"github.com/typeworld/typeworld-go/internal/interfaces/cli/fonts"
	"github.com/typeworld/typeworld-go/internal/interfaces/cli/status"
	"github.com/typeworld/typeworld-go/internal/interfaces/cli/subscription"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "typeworld",
		Short: "Type.World font distribution client",
		Long: `The Type.World client subscribes to publisher font feeds, installs and
uninstalls fonts under each publisher's seat policy, and keeps multiple
app instances of the same user account in sync through the central
Type.World server.`,
	}

	rootCmd.AddCommand(
		daemon.NewCommand(),
		status.NewCommand(),
		configCmd.NewCommand(),
		account.NewCommand(),
		subscription.NewCommand(),
		fonts.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
