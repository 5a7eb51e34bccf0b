package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"glass/internal/manifest"
	"glass/internal/store"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var timelineID string

	cmd := &cobra.Command{
		Use:   "ingest <video> [video...]",
		Short: "Ingest recordings into aligned context",
		Long: `Extract frames and audio, transcribe, and store aligned context for each video.

A single video runs in the foreground. Several videos are scheduled on the
worker pool (ingestion.max_concurrency) and the command waits for all of them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 && strings.TrimSpace(timelineID) != "" {
				return errors.New("--id can only be used with a single video")
			}
			return ctx.withRuntime(cmd, func(rt *runtime) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					m, err := rt.manager.Ingest(cmd.Context(), args[0], timelineID)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Timeline %s completed: %d segments (%d audio, %d frame)\n",
						m.TimelineID(), m.Len(), m.Count(manifest.KindAudio), m.Count(manifest.KindFrame))
					return nil
				}

				var ids []string
				for _, path := range args {
					id, err := rt.manager.Submit(cmd.Context(), path, "")
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "skip %s: %v\n", path, err)
						continue
					}
					ids = append(ids, id)
					fmt.Fprintf(out, "Queued %s as %s\n", path, id)
				}
				rt.manager.Wait()
				if len(ids) == 0 {
					return errors.New("no videos were queued")
				}

				rows := make([][]string, 0, len(ids))
				failed := 0
				for _, id := range ids {
					t, err := rt.store.Get(cmd.Context(), id)
					if err != nil {
						return err
					}
					if t == nil {
						continue
					}
					if t.Status != store.StatusCompleted {
						failed++
					}
					rows = append(rows, timelineRow(t))
				}
				fmt.Fprint(out, renderTable(timelineHeaders, rows, timelineAligns))
				if failed > 0 {
					return fmt.Errorf("%d of %d ingestions did not complete", failed, len(ids))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&timelineID, "id", "", "Timeline id (derived from the file when empty)")
	return cmd
}
