package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minsuoh/hipass-capture/internal/artifact"
	"github.com/minsuoh/hipass-capture/internal/observability"
)

// newPruneCmd creates the `prune` command, which removes receipt images
// older than the retention window. Works without portal credentials.
func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Removes receipt images older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			cfg := appConfig

			store, err := artifact.NewStore(cfg.Capture.ScreenshotsDir, logger)
			if err != nil {
				return fmt.Errorf("failed to open artifact store: %w", err)
			}

			removed, err := store.Prune(time.Now(), cfg.Capture.RetentionDays)
			if err != nil {
				return err
			}
			logger.Info("Pruning complete",
				zap.Int("removed", removed),
				zap.Int("retention_days", cfg.Capture.RetentionDays),
			)
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newPruneCmd())
}
