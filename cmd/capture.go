package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minsuoh/hipass-capture/internal/capture"
	"github.com/minsuoh/hipass-capture/internal/observability"
)

// newCaptureCmd creates the `capture` command: a one-shot run, either a
// single date or the recent window.
func newCaptureCmd() *cobra.Command {
	var days int

	captureCmd := &cobra.Command{
		Use:   "capture [YYYY-MM-DD]",
		Short: "Captures receipt images for a date or the recent window",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			cfg := appConfig

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			var outcomes []capture.Outcome
			if len(args) == 1 {
				date, err := capture.ParseDate(args[0])
				if err != nil {
					return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", args[0])
				}
				outcomes, err = components.Runner.RunDate(ctx, date)
				if err != nil {
					return err
				}
			} else {
				if days <= 0 {
					days = cfg.Capture.Days
				}
				outcomes, err = components.Runner.RunRange(ctx, days, func(done, total int, date string) {
					logger.Info("progress", zap.Int("done", done), zap.Int("total", total), zap.String("date", date))
				})
				if err != nil {
					return err
				}
			}

			failed := 0
			for _, o := range outcomes {
				logger.Info("outcome",
					zap.String("date", o.Date),
					zap.String("status", string(o.Status)),
					zap.String("message", o.Message),
				)
				if o.Status == capture.StatusError {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d dates failed", failed, len(outcomes))
			}
			return nil
		},
	}

	captureCmd.Flags().IntVarP(&days, "days", "d", 0, "number of recent days to capture (default from config)")
	return captureCmd
}

func init() {
	rootCmd.AddCommand(newCaptureCmd())
}
