// Package fonts implements the font install/uninstall CLI commands.
package fonts

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/typeworld/typeworld-go/internal/application/client"
	"github.com/typeworld/typeworld-go/internal/domain/catalog"
	"github.com/typeworld/typeworld-go/internal/interfaces/cli"
	"github.com/typeworld/typeworld-go/internal/protocol"
)

var (
	configPath string
	version    string
	dryRun     bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fonts",
		Short: "Install, remove and inspect fonts",
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	list := &cobra.Command{
		Use:   "list <subscription-url>",
		Short: "List a subscription's fonts",
		Args:  cobra.ExactArgs(1),
		RunE:  runList,
	}

	install := &cobra.Command{
		Use:   "install <subscription-url> <font-id>...",
		Short: "Install fonts from a subscription",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runInstall,
	}
	install.Flags().StringVar(&version, "version", "", "Font version (defaults to latest)")

	remove := &cobra.Command{
		Use:   "remove <subscription-url> <font-id>...",
		Short: "Uninstall fonts",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runRemove,
	}
	remove.Flags().BoolVar(&dryRun, "dry-run", false, "Release the seats without touching installed files")

	outdated := &cobra.Command{
		Use:   "outdated",
		Short: "List installed fonts with newer versions available",
		Args:  cobra.NoArgs,
		RunE:  runOutdated,
	}

	expiring := &cobra.Command{
		Use:   "expiring",
		Short: "List installed trial fonts and their expiry dates",
		Args:  cobra.NoArgs,
		RunE:  runExpiring,
	}

	cmd.AddCommand(list, install, remove, outdated, expiring)
	return cmd
}

func subscriptionArg(app *cli.App, url string) (*client.Subscription, error) {
	sub, err := app.Client.Subscription(url)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("no subscription with URL %s", url)
	}
	return sub, nil
}

func runList(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	sub, err := subscriptionArg(app, args[0])
	if err != nil {
		return err
	}
	fonts, err := sub.InstallableFonts(cmd.Context(), false)
	if err != nil {
		return err
	}

	locale := app.Client.Locale()
	fonts.EachFont(func(font *catalog.Font) bool {
		state := "-"
		if v, ok := sub.InstalledFontVersion(cmd.Context(), font.UniqueID); ok {
			state = "installed " + v
		}
		flags := ""
		if font.Protected {
			flags = " [protected]"
		}
		latest := ""
		if lv := font.LatestVersion(); lv != nil {
			latest = lv.Number
		}
		fmt.Printf("%-40s %-24s %-8s %s%s\n",
			font.UniqueID, font.Name.Text(locale), latest, state, flags)
		return true
	})
	return nil
}

func runInstall(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	sub, err := subscriptionArg(app, args[0])
	if err != nil {
		return err
	}

	requests := make([]protocol.FontRequest, 0, len(args)-1)
	for _, fontID := range args[1:] {
		requests = append(requests, protocol.FontRequest{FontID: fontID, Version: version})
	}
	if err := sub.InstallFonts(cmd.Context(), requests); err != nil {
		return err
	}
	fmt.Printf("Installed %d font(s) into %s\n", len(requests), app.Client.FontsDir())
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	sub, err := subscriptionArg(app, args[0])
	if err != nil {
		return err
	}
	if err := sub.RemoveFonts(cmd.Context(), args[1:], client.RemoveOptions{DryRun: dryRun}); err != nil {
		return err
	}
	if dryRun {
		fmt.Println("Seats released; installed files left in place.")
	} else {
		fmt.Printf("Removed %d font(s).\n", len(args)-1)
	}
	return nil
}

func runOutdated(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	outdated, err := app.Client.OutdatedFonts(cmd.Context())
	if err != nil {
		return err
	}
	if len(outdated) == 0 {
		fmt.Println("All installed fonts are current.")
		return nil
	}
	for url, fontIDs := range outdated {
		fmt.Println(url)
		for _, fontID := range fontIDs {
			fmt.Printf("    %s\n", fontID)
		}
	}
	return nil
}

func runExpiring(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	expiring, err := app.Client.ExpiringFonts(cmd.Context())
	if err != nil {
		return err
	}
	if len(expiring) == 0 {
		fmt.Println("No installed fonts expire.")
		return nil
	}
	for url, fonts := range expiring {
		fmt.Println(url)
		for fontID, expiry := range fonts {
			fmt.Printf("    %-40s %s\n", fontID, expiry.Format(time.DateOnly))
		}
	}
	return nil
}
