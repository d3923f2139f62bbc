package commands

import (
	"context"
	"errors"
	"fmt"

	"activity-keeper/services/keeper"

	"github.com/spf13/cobra"
)

var errSiteDown = errors.New("site is down")

var quiet bool

func init() {
	for _, cmd := range []*cobra.Command{loginCmd, logoutCmd, checkCmd} {
		cmd.Flags().BoolVar(&quiet, "quiet", false, "Log notifications instead of emailing them.")
		rootCmd.AddCommand(cmd)
	}
}

// runOnce builds a service and runs a single job with it.
func runOnce(ctx context.Context, job func(ctx context.Context, service *keeper.Service) error) error {
	app, err := newApp(ctx, quiet)
	if err != nil {
		return err
	}
	defer app.Close()

	service, err := app.service()
	if err != nil {
		return err
	}
	return job(ctx, service)
}

var loginCmd = &cobra.Command{
	Use:   "login [--quiet]",
	Short: "Logs into the activity site once.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context(), func(ctx context.Context, service *keeper.Service) error {
			return service.Login(ctx)
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout [--quiet]",
	Short: "Logs out of the activity site once.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context(), func(ctx context.Context, service *keeper.Service) error {
			return service.Logout(ctx)
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [--quiet]",
	Short: "Checks once whether the activity site is reachable.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context(), func(ctx context.Context, service *keeper.Service) error {
			if !service.Check(ctx) {
				return errSiteDown
			}
			fmt.Println("site is up")
			return nil
		})
	},
}
