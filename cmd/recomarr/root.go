package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"recomarr/internal/models"
)

var rootCmd = &cobra.Command{
	Use:           "recomarr",
	Short:         "AI-curated recommendation folders for Kinopub",
	Long:          "recomarr keeps managed bookmark folders in sync with AI-generated recommendations, excluding everything already watched, bookmarked or rejected.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var recommendKind string

func init() {
	recommendCmd.Flags().StringVar(&recommendKind, "kind", "both", "content kind to recommend: movie, series or both")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(serveCmd)
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize with the remote service via device flow",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if a.session.IsAuthenticated() {
			a.logger.Info("Already authenticated")
			return nil
		}
		return a.session.Authenticate(cmd.Context())
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan viewing history and bookmark folders into the local store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}
		return a.scanCtrl.Run(cmd.Context())
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Run one reconciliation batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(recommendKind)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}

		summary, err := a.reconcileCtrl.Run(cmd.Context(), kind)
		if err != nil {
			return err
		}

		fmt.Printf("Suggested: %d  Added: %d  Duplicates: %d  Not found: %d  Rejected: %d  Failed: %d\n",
			summary.Suggested, summary.Added, summary.Duplicates,
			summary.NotFound, summary.Rejected, summary.Failed)
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove excluded items from the managed folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}

		removed, err := a.cleanupCtrl.Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d items\n", removed)
		return nil
	},
}

// parseKind maps the --kind flag onto a media kind; empty means both
func parseKind(flag string) (models.MediaKind, error) {
	switch flag {
	case "movie":
		return models.KindMovie, nil
	case "series":
		return models.KindSeries, nil
	case "both", "":
		return "", nil
	default:
		return "", fmt.Errorf("invalid kind %q: must be movie, series or both", flag)
	}
}
