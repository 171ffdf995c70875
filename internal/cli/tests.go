package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"verdict-cli/internal/model"
	"verdict-cli/internal/rows"
)

func newTestsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tests",
		Aliases: []string{"test"},
		Short:   "Test statement commands",
	}
	cmd.AddCommand(newTestsListCmd(app))
	cmd.AddCommand(newTestsAssessCmd(app))
	cmd.AddCommand(newTestsEditCmd(app))
	cmd.AddCommand(newTestsDeleteCmd(app))
	cmd.AddCommand(newTestsAutoGradeCmd(app))
	cmd.AddCommand(newTestsMoveCmd(app))
	cmd.AddCommand(newTestsAddCmd(app))
	cmd.AddCommand(newTestsGenerateCmd(app))
	return cmd
}

func newTestsListCmd(app *App) *cobra.Command {
	var (
		expand    []string
		expandAll bool
		sorts     []string
		filters   []string
		hide      []string
		page      int
		pageSize  int
		all       bool
	)

	cmd := &cobra.Command{
		Use:   "list [topic]",
		Short: "List a topic's tests as the results table shows them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, err := topicArg(app, args, "")
			if err != nil {
				return writeErr(cmd, err)
			}
			o, err := openTopic(commandContext(cmd), app, topic)
			if err != nil {
				return writeErr(cmd, err)
			}
			tb := o.d.Table()

			var parsed []rows.Sort
			for _, s := range sorts {
				srt, err := parseSort(s)
				if err != nil {
					return writeErr(cmd, err)
				}
				parsed = append(parsed, srt)
			}
			tb.SetSorting(parsed...)
			for _, f := range filters {
				col, val, err := parseFilter(f)
				if err != nil {
					return writeErr(cmd, err)
				}
				tb.SetFilter(col, val)
			}
			for _, h := range splitList(hide) {
				col, err := rows.ParseColumn(h)
				if err != nil {
					return writeErr(cmd, err)
				}
				tb.SetColumnVisible(col, false)
			}

			switch {
			case all:
				tb.SetPageSize(max(tb.Len(), 1))
			case pageSize > 0:
				tb.SetPageSize(pageSize)
			}
			if page > 0 {
				tb.SetPageIndex(page - 1)
			}

			if expandAll {
				o.d.ExpandAll()
			}
			for _, id := range splitList(expand) {
				if _, ok := tb.Find(id); !ok {
					return writeErr(cmd, errNotFound("test", id))
				}
				o.d.Expansion().Expand(id)
			}

			v := o.d.View()
			return writeOut(cmd, app, map[string]any{
				"data": rowsOut(v),
				"meta": map[string]any{
					"topic":      topic,
					"page":       v.PageIndex + 1,
					"page_count": v.PageCount,
					"page_size":  tb.PageSize(),
					"filtered":   v.Filtered,
					"total":      tb.Len(),
					"hidden":     hiddenColumns(v),
				},
				"_hints": o.hints(),
			})
		},
	}

	cmd.Flags().StringSliceVar(&expand, "expand", nil, "Expand these test ids (comma separated)")
	cmd.Flags().BoolVar(&expandAll, "expand-all", false, "Expand every test that has variants")
	cmd.Flags().StringArrayVar(&sorts, "sort", nil, "Sort by column (col or col:desc); repeat for secondary sorts")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "Filter rows (col=value); repeatable")
	cmd.Flags().StringSliceVar(&hide, "hide", nil, "Hide columns from the table view")
	cmd.Flags().IntVar(&page, "page", 0, "Page number (1-based)")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Rows per page")
	cmd.Flags().BoolVar(&all, "all", false, "Show every test on one page")
	return cmd
}

func newTestsAssessCmd(app *App) *cobra.Command {
	var topicFlag string

	cmd := &cobra.Command{
		Use:   "assess <test-id> <acceptable|unacceptable>",
		Short: "Record the human verdict for an ungraded test",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			gt, err := model.ParseGroundTruth(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			if !gt.Graded() {
				return writeErr(cmd, fmt.Errorf("invalid verdict: %q (expected acceptable|unacceptable)", args[1]))
			}
			topic, err := topicArg(app, nil, topicFlag)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := commandContext(cmd)
			o, err := openTopic(ctx, app, topic)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := o.requireFresh(); err != nil {
				return writeErr(cmd, err)
			}
			p, ok := o.d.Table().Find(id)
			if !ok {
				return writeErr(cmd, errNotFound("test", id))
			}
			call, ok := o.d.BeginAssess(id, gt)
			if !ok {
				return writeErr(cmd, fmt.Errorf("test %s is already graded (%s); use `verdict tests edit`", id, p.GroundTruth))
			}
			res := o.d.ApplyAssess(ctx, o.d.Assess(ctx, call))
			if !res.OK {
				return writeErr(cmd, errResult(res))
			}
			p, _ = o.d.Table().Find(id)
			return writeOut(cmd, app, map[string]any{"data": parentOut(p), "meta": map[string]any{"message": res.Message}})
		},
	}

	cmd.Flags().StringVar(&topicFlag, "topic", "", "Topic of the test (default: current topic)")
	return cmd
}

func newTestsEditCmd(app *App) *cobra.Command {
	var (
		topicFlag   string
		statement   string
		groundTruth string
	)

	cmd := &cobra.Command{
		Use:   "edit <test-id>",
		Short: "Edit a test's statement and/or ground truth",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if !cmd.Flags().Changed("statement") && !cmd.Flags().Changed("ground-truth") {
				return writeErr(cmd, fmt.Errorf("nothing to edit: pass --statement and/or --ground-truth"))
			}
			topic, err := topicArg(app, nil, topicFlag)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := commandContext(cmd)
			o, err := openTopic(ctx, app, topic)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := o.requireFresh(); err != nil {
				return writeErr(cmd, err)
			}
			p, ok := o.d.Table().Find(id)
			if !ok {
				return writeErr(cmd, errNotFound("test", id))
			}

			text := p.Statement
			if cmd.Flags().Changed("statement") {
				text = statement
			}
			gt := p.GroundTruth
			if cmd.Flags().Changed("ground-truth") {
				if gt, err = model.ParseGroundTruth(groundTruth); err != nil {
					return writeErr(cmd, err)
				}
			}
			call, ok := o.d.BeginEdit(id, text, gt)
			if !ok {
				return writeErr(cmd, fmt.Errorf("statement must not be empty"))
			}
			res := o.d.ApplyEdit(ctx, o.d.Edit(ctx, call))
			if !res.OK {
				return writeErr(cmd, errResult(res))
			}
			var hints []string
			if res.Reload {
				hints = append(hints, "the AI verdict is being recomputed; run `verdict tests list` again shortly")
			}
			p, _ = o.d.Table().Find(id)
			return writeOut(cmd, app, map[string]any{
				"data":   parentOut(p),
				"meta":   map[string]any{"message": res.Message},
				"_hints": hints,
			})
		},
	}

	cmd.Flags().StringVar(&topicFlag, "topic", "", "Topic of the test (default: current topic)")
	cmd.Flags().StringVar(&statement, "statement", "", "New statement text")
	cmd.Flags().StringVar(&groundTruth, "ground-truth", "", "New ground truth (acceptable|unacceptable|ungraded)")
	return cmd
}

func newTestsDeleteCmd(app *App) *cobra.Command {
	var topicFlag string

	cmd := &cobra.Command{
		Use:   "delete <test-id>...",
		Short: "Delete tests",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, err := topicArg(app, nil, topicFlag)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := commandContext(cmd)
			o, err := openTopic(ctx, app, topic)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := o.requireFresh(); err != nil {
				return writeErr(cmd, err)
			}
			ids := splitList(args)
			for _, id := range ids {
				if _, ok := o.d.Table().Find(id); !ok {
					return writeErr(cmd, errNotFound("test", id))
				}
			}
			call, _ := o.d.BeginDelete(ids)
			out := o.d.Delete(ctx, call)
			res := o.d.ApplyDelete(ctx, out)

			failed := map[string]string{}
			for id := range out.Failed {
				failed[id] = o.d.MutationErr(id)
			}
			if err := writeOut(cmd, app, map[string]any{
				"data": map[string]any{"deleted": out.Deleted, "failed": failed},
				"meta": map[string]any{"message": res.Message},
			}); err != nil {
				return err
			}
			if len(failed) > 0 {
				return writeErr(cmd, errResult(res))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&topicFlag, "topic", "", "Topic of the tests (default: current topic)")
	return cmd
}

func newTestsAutoGradeCmd(app *App) *cobra.Command {
	var topicFlag string

	cmd := &cobra.Command{
		Use:   "autograde <test-id>...",
		Short: "Ask the AI to grade tests again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, err := topicArg(app, nil, topicFlag)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := commandContext(cmd)
			o, err := openTopic(ctx, app, topic)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := o.requireFresh(); err != nil {
				return writeErr(cmd, err)
			}
			call, ok := o.d.BeginAutoGrade(splitList(args))
			if !ok {
				return writeErr(cmd, errNotFound("test", strings.Join(args, ", ")))
			}
			out := o.d.AutoGrade(ctx, call)
			res := o.d.ApplyAutoGrade(ctx, out)
			if !res.OK {
				return writeErr(cmd, errResult(res))
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{"graded_count": out.Graded.GradedCount, "ids": call.IDs},
				"meta": map[string]any{"message": res.Message},
			})
		},
	}

	cmd.Flags().StringVar(&topicFlag, "topic", "", "Topic of the tests (default: current topic)")
	return cmd
}

func newTestsMoveCmd(app *App) *cobra.Command {
	var (
		topicFlag string
		to        string
	)

	cmd := &cobra.Command{
		Use:   "move <test-id> --to <test-id>",
		Short: "Move a test to another test's position in the local manual order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, err := topicArg(app, nil, topicFlag)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := commandContext(cmd)
			o, err := openTopic(ctx, app, topic)
			if err != nil {
				return writeErr(cmd, err)
			}
			tb := o.d.Table()
			tb.SetPageSize(max(tb.Len(), 1))
			id := strings.TrimSpace(args[0])
			for _, x := range []string{id, strings.TrimSpace(to)} {
				if _, ok := tb.Find(x); !ok {
					return writeErr(cmd, errNotFound("test", x))
				}
			}
			moved := o.d.DragMove(ctx, id, strings.TrimSpace(to))
			order := make([]string, 0, tb.Len())
			for _, p := range tb.Rows() {
				order = append(order, p.ID)
			}
			return writeOut(cmd, app, map[string]any{
				"data":   map[string]any{"moved": moved, "order": order},
				"_hints": o.hints(),
			})
		},
	}

	cmd.Flags().StringVar(&topicFlag, "topic", "", "Topic of the tests (default: current topic)")
	cmd.Flags().StringVar(&to, "to", "", "Test id whose position the moved test takes")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
