// Package subscription implements the subscription CLI commands.
package subscription

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/typeworld/typeworld-go/internal/application/client"
	"github.com/typeworld/typeworld-go/internal/interfaces/cli"
)

var (
	configPath     string
	acceptTerms    bool
	revealIdentity bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscription",
		Short: "Manage font subscriptions",
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	add := &cobra.Command{
		Use:   "add <url>",
		Short: "Subscribe to a publisher's font feed",
		Args:  cobra.ExactArgs(1),
		RunE:  runAdd,
	}
	add.Flags().BoolVar(&acceptTerms, "accept-terms", false, "Accept the publisher's terms of service")
	add.Flags().BoolVar(&revealIdentity, "reveal-identity", false, "Reveal your identity to the publisher")

	list := &cobra.Command{
		Use:   "list",
		Short: "List subscriptions",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}

	remove := &cobra.Command{
		Use:   "remove <url>",
		Short: "Delete a subscription and uninstall its fonts",
		Args:  cobra.ExactArgs(1),
		RunE:  runRemove,
	}

	update := &cobra.Command{
		Use:   "update [url]",
		Short: "Refresh one subscription, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runUpdate,
	}

	terms := &cobra.Command{
		Use:   "accept-terms <url>",
		Short: "Accept a publisher's terms of service after the fact",
		Args:  cobra.ExactArgs(1),
		RunE:  runAcceptTerms,
	}

	invitations := &cobra.Command{
		Use:   "invitations",
		Short: "List pending subscription invitations",
		Args:  cobra.NoArgs,
		RunE:  runInvitations,
	}

	accept := &cobra.Command{
		Use:   "accept <url>",
		Short: "Accept a subscription invitation",
		Args:  cobra.ExactArgs(1),
		RunE:  runAccept,
	}

	decline := &cobra.Command{
		Use:   "decline <url>",
		Short: "Decline a subscription invitation",
		Args:  cobra.ExactArgs(1),
		RunE:  runDecline,
	}

	invite := &cobra.Command{
		Use:   "invite <url> <email>",
		Short: "Invite another user to a subscription",
		Args:  cobra.ExactArgs(2),
		RunE:  runInvite,
	}

	cmd.AddCommand(add, list, remove, update, terms, invitations, accept, decline, invite)
	return cmd
}

func runAdd(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	sub, err := app.Client.AddSubscription(cmd.Context(), args[0], client.AddOptions{
		AcceptedTermsOfService: acceptTerms,
		RevealIdentity:         revealIdentity,
	})
	if err != nil {
		return err
	}

	fonts, err := sub.InstallableFonts(cmd.Context(), false)
	if err != nil {
		return err
	}
	fmt.Printf("Subscribed to %q (%d fonts).\n",
		sub.Name(cmd.Context(), app.Client.Locale()), fonts.FontCount())
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	subs, err := app.Client.Subscriptions()
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		fmt.Println("No subscriptions.")
		return nil
	}

	for _, sub := range subs {
		fmt.Printf("%s\n    %s\n",
			sub.Name(cmd.Context(), app.Client.Locale()), sub.UnsecretURL())
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	sub, err := app.Client.Subscription(args[0])
	if err != nil {
		return err
	}
	if sub == nil {
		return fmt.Errorf("no subscription with URL %s", args[0])
	}
	if err := sub.Delete(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Subscription deleted.")
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	if len(args) == 0 {
		if err := app.Client.UpdateAllSubscriptions(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("All subscriptions updated.")
		return nil
	}

	sub, err := app.Client.Subscription(args[0])
	if err != nil {
		return err
	}
	if sub == nil {
		return fmt.Errorf("no subscription with URL %s", args[0])
	}
	changed, err := sub.Update(cmd.Context())
	if err != nil {
		return err
	}
	if changed {
		fmt.Println("Subscription updated, content changed.")
	} else {
		fmt.Println("Subscription is up to date.")
	}
	return nil
}

func runAcceptTerms(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	sub, err := app.Client.Subscription(args[0])
	if err != nil {
		return err
	}
	if sub == nil {
		return fmt.Errorf("no subscription with URL %s", args[0])
	}
	if err := sub.SetAcceptedTermsOfService(true); err != nil {
		return err
	}
	fmt.Println("Terms of service accepted.")
	return nil
}

func runInvitations(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	pending := app.Client.PendingInvitations()
	if len(pending) == 0 {
		fmt.Println("No pending invitations.")
		return nil
	}
	for _, inv := range pending {
		fmt.Printf("%s (%d fonts), invited by %s\n    %s\n",
			inv.PublisherName, inv.FontCount, inv.InvitedByUserName, inv.URL)
	}
	return nil
}

func runAccept(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Client.AcceptInvitation(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Println("Invitation accepted.")
	return nil
}

func runDecline(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Client.DeclineInvitation(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Println("Invitation declined.")
	return nil
}

func runInvite(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Client.InviteUser(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("Invited %s.\n", args[1])
	return nil
}
