package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"glass/internal/httpapi"
	"glass/internal/logging"
	"glass/internal/preflight"
	"glass/internal/store"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only timeline API and resume pending ingestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *runtime) error {
				logger := rt.logger
				for _, r := range preflight.Failed(preflight.RunAll(cmd.Context(), rt.cfg)) {
					logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
						logging.String("check", r.Name),
						logging.String("detail", r.Detail),
					)
				}

				recovered, err := rt.manager.Recover(cmd.Context())
				if err != nil {
					return fmt.Errorf("recover timelines: %w", err)
				}
				pending, err := rt.store.List(cmd.Context(), store.StatusPending)
				if err != nil {
					return err
				}
				for _, t := range pending {
					if _, err := rt.manager.Submit(cmd.Context(), t.Source, t.ID); err != nil {
						logging.WithTimeline(logger, t.ID).Warn("resume pending timeline", logging.Error(err))
					}
				}
				logger.Info("resumed pending timelines",
					logging.Int("recovered", recovered),
					logging.Int("pending", len(pending)),
				)

				address := strings.TrimSpace(bind)
				if address == "" {
					address = rt.cfg.API.Bind
				}
				router := httpapi.NewRouter(rt.store, rt.manager, rt.source, logger)
				server := httpapi.NewServer(address, router, logger)
				if server == nil {
					return fmt.Errorf("api bind address is empty")
				}
				if err := server.Start(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s\n", server.Addr())

				<-cmd.Context().Done()
				server.Stop()
				logger.Info("glass shutting down")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (defaults to api.bind)")
	return cmd
}
