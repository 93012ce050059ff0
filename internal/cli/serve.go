package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"dyncal/internal/capture"
	appLog "dyncal/internal/log"
	"dyncal/internal/refresh"
	"dyncal/internal/web"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var snapshot bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calendar API and page, refreshing remote events on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.newApp(func(a *app, ro *refresh.Options) {
				if !cmd.Flags().Changed("snapshot") {
					snapshot = a.cfg.Snapshot.Enabled
				}
				if snapshot {
					ro.Capture = capture.Snapshot
					ro.CaptureOptions = captureOptions(a.cfg)
				}
			})
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			srv := web.NewServer(a.cfg, a.webDeps())
			a.refresher.OnRefresh(srv.Invalidate)

			appLog.Info("dyncal starting", "version", version,
				"listen", a.cfg.Listen,
				"timezone", a.cfg.Timezone,
				"refresh", a.cfg.RefreshCron,
				"ics_count", len(a.cfg.ICS),
				"static_events", len(a.cfg.Events),
				"snapshot", snapshot,
				"offline", a.offline,
			)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe(ctx) }()
			waitHealthy(ctx, "http://"+a.cfg.Listen+"/health", 5*time.Second)

			if err := a.refresher.Start(ctx, a.cfg.RefreshCron); err != nil {
				return usageError("%v", err)
			}
			err = <-errCh
			appLog.Info("dyncal exiting")
			return err
		},
	}
	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "Capture a PNG of the calendar page after every refresh (default from config)")
	return cmd
}

// waitHealthy polls url until it answers 200 or timeout passes.
func waitHealthy(ctx context.Context, url string, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client := &http.Client{Timeout: time.Second}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return
		}
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		select {
		case <-ctx.Done():
			appLog.Warn("server not healthy yet", "url", url)
			return
		case <-ticker.C:
		}
	}
}
