package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"glass/internal/contextmodel"
	"glass/internal/httpapi"
	"glass/internal/manifest"
	"glass/internal/services"
	"glass/internal/store"
)

var (
	timelineHeaders = []string{"Timeline", "Status", "Segments", "Attempts", "Transcriber", "Updated", "Source"}
	timelineAligns  = []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft}
)

func timelineRow(t *store.Timeline) []string {
	return []string{
		t.ID,
		string(t.Status),
		strconv.Itoa(t.SegmentCount),
		strconv.Itoa(t.Attempts),
		dash(t.Transcriber),
		humanize.Time(t.UpdatedAt),
		t.Source,
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known timelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFilters)
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(rt *runtime) error {
				timelines, err := rt.store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if asJSON {
					views := make([]httpapi.TimelineView, 0, len(timelines))
					for _, t := range timelines {
						views = append(views, httpapi.NewTimelineView(t))
					}
					return writeJSON(cmd, views)
				}
				if len(timelines) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No timelines")
					return nil
				}
				rows := make([][]string, 0, len(timelines))
				for _, t := range timelines {
					rows = append(rows, timelineRow(t))
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(timelineHeaders, rows, timelineAligns))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFilters, "status", "s", nil, "Filter by status (pending, processing, completed, failed)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <timeline-id>",
		Short: "Show the ingestion status of a timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *runtime) error {
				t, err := rt.store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if t == nil {
					_, err := rt.manager.Status(cmd.Context(), args[0])
					return err
				}
				pairs := [][2]string{
					{"Timeline", t.ID},
					{"Status", string(t.Status)},
					{"Source", t.Source},
					{"Segments", strconv.Itoa(t.SegmentCount)},
					{"Attempts", strconv.Itoa(t.Attempts)},
					{"Transcriber", dash(t.Transcriber)},
					{"Manifest", yesNo(t.HasManifest())},
					{"Updated", humanize.Time(t.UpdatedAt)},
				}
				if t.ErrorKind != "" {
					pairs = append(pairs, [2]string{"Error kind", t.ErrorKind})
				}
				if t.ErrorMessage != "" {
					pairs = append(pairs, [2]string{"Message", t.ErrorMessage})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderKeyValues(pairs))
				return nil
			})
		},
	}
}

func newManifestCommand(ctx *commandContext) *cobra.Command {
	var kinds []string
	var asTable bool

	cmd := &cobra.Command{
		Use:   "manifest <timeline-id>",
		Short: "Print the alignment manifest of a completed timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseKinds(kinds)
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(rt *runtime) error {
				m, err := rt.manager.FetchManifest(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !asTable && len(filter) == 0 {
					data, err := m.MarshalIndent()
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(data))
					return nil
				}
				segments := m.Segments()
				if len(filter) > 0 {
					segments = m.Filter(filter...)
				}
				if !asTable {
					return writeJSON(cmd, segments)
				}
				rows := make([][]string, 0, len(segments))
				for _, seg := range segments {
					rows = append(rows, []string{
						formatSeconds(seg.Start),
						formatSeconds(seg.End),
						string(seg.Kind),
						truncate(seg.Payload, 80),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Start", "End", "Type", "Payload"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", nil, "Only segments of these types (audio, frame, metadata, text)")
	cmd.Flags().BoolVar(&asTable, "table", false, "Render segments as a table")
	return cmd
}

func newItemsCommand(ctx *commandContext) *cobra.Command {
	var modalities []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "items <timeline-id>",
		Short: "List stored context items, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseKinds(modalities)
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(rt *runtime) error {
				if err := requireTimeline(cmd, rt, args[0]); err != nil {
					return err
				}
				envelope, err := rt.source.FetchEnvelope(cmd.Context(), args[0], filter...)
				if err != nil {
					return err
				}
				if asJSON {
					if envelope == nil {
						envelope = &contextmodel.Envelope{TimelineID: args[0], Items: []contextmodel.Item{}}
					}
					return writeJSON(cmd, envelope)
				}
				if envelope == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No items")
					return nil
				}
				rows := make([][]string, 0, len(envelope.Items))
				for _, item := range envelope.Items {
					meta := item.Context.Metadata
					rows = append(rows, []string{
						formatSeconds(meta.SegmentStart),
						formatSeconds(meta.SegmentEnd),
						string(item.Modality),
						string(item.Context.Type()),
						yesNo(item.EmbeddingReady),
						truncate(item.Context.ExtractedData.Summary, 70),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Start", "End", "Modality", "Context type", "Embedded", "Summary"},
					rows,
					[]columnAlignment{alignRight, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&modalities, "modality", "m", nil, "Only items of these modalities")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the envelope as JSON")
	return cmd
}

func newContextsCommand(ctx *commandContext) *cobra.Command {
	var modalities []string
	var grouped bool

	cmd := &cobra.Command{
		Use:   "contexts <timeline-id>",
		Short: "Print prompt-ready context strings, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseKinds(modalities)
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(rt *runtime) error {
				if err := requireTimeline(cmd, rt, args[0]); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !grouped {
					values, err := rt.source.ContextStrings(cmd.Context(), args[0], filter...)
					if err != nil {
						return err
					}
					fmt.Fprint(out, strings.Join(values, "\n"))
					return nil
				}
				groups, err := rt.source.GroupByContextType(cmd.Context(), args[0], filter...)
				if err != nil {
					return err
				}
				types := make([]string, 0, len(groups))
				for contextType := range groups {
					types = append(types, string(contextType))
				}
				sort.Strings(types)
				for _, contextType := range types {
					contexts := groups[contextmodel.ContextType(contextType)]
					fmt.Fprintf(out, "## %s (%d)\n\n", contextType, len(contexts))
					for _, c := range contexts {
						fmt.Fprintln(out, c.LLMContextString())
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&modalities, "modality", "m", nil, "Only contexts of these modalities")
	cmd.Flags().BoolVar(&grouped, "group", false, "Group contexts by semantic category")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <timeline-id>",
		Short: "Re-run a failed or pending timeline from its recorded source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *runtime) error {
				m, err := rt.manager.Retry(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Timeline %s completed: %d segments\n", m.TimelineID(), m.Len())
				return nil
			})
		},
	}
}

func newRecoverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Return timelines left processing by a dead process to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *runtime) error {
				count, err := rt.manager.Recover(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recovered %d timeline(s)\n", count)
				return nil
			})
		},
	}
}

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <timeline-id>",
		Short: "Rebuild vector records missing for a completed timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *runtime) error {
				report, err := rt.repo.Reconcile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Checked", "Missing", "Restored", "Unresolved"},
					[][]string{{
						strconv.Itoa(report.Checked),
						strconv.Itoa(report.Missing),
						strconv.Itoa(report.Restored),
						strconv.Itoa(report.Unresolved),
					}},
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
}

// requireTimeline turns an unknown id into services.ErrNotFound; an empty
// result is otherwise indistinguishable from a timeline without items.
func requireTimeline(cmd *cobra.Command, rt *runtime, timelineID string) error {
	_, err := rt.manager.Status(cmd.Context(), timelineID)
	return err
}

func parseStatuses(values []string) ([]store.Status, error) {
	var statuses []store.Status
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := store.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func parseKinds(values []string) ([]manifest.Kind, error) {
	var kinds []manifest.Kind
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		kind, ok := manifest.ParseKind(value)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "cli", "parse modality", fmt.Sprintf("unknown modality %q", value), nil)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}

func truncate(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
