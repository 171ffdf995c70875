package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

func newPerturbationsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "perturbations",
		Aliases: []string{"variants"},
		Short:   "Perturbation (test variant) commands",
	}
	cmd.AddCommand(newPerturbationsListCmd(app))
	cmd.AddCommand(newPerturbationsGenerateCmd(app))
	return cmd
}

func newPerturbationsListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [topic]",
		Short: "List a topic's perturbations grouped by test",
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
			return writeOut(cmd, app, map[string]any{
				"data":   o.d.Cache().Snapshot(),
				"meta":   map[string]any{"topic": topic, "types": o.d.Cache().Types()},
				"_hints": o.hints(),
			})
		},
	}
	return cmd
}

func newPerturbationsGenerateCmd(app *App) *cobra.Command {
	var types []string

	cmd := &cobra.Command{
		Use:   "generate <topic> <test-id>...",
		Short: "Generate perturbations of tests",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, err := topicArg(app, args[:1], "")
			if err != nil {
				return writeErr(cmd, err)
			}
			ids := splitList(args[1:])
			if len(ids) == 0 {
				return writeErr(cmd, errors.New("select at least one test statement"))
			}
			ctx := commandContext(cmd)
			o, err := openTopic(ctx, app, topic)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := o.requireFresh(); err != nil {
				return writeErr(cmd, err)
			}
			for _, id := range ids {
				if _, ok := o.d.Table().Find(id); !ok {
					return writeErr(cmd, errNotFound("test", id))
				}
			}
			call, _ := o.d.BeginGenerate(ids, splitList(types))
			out := o.d.Generate(ctx, call)
			res := o.d.ApplyGenerate(ctx, out)
			if !res.OK {
				return writeErr(cmd, errResult(res))
			}
			return writeOut(cmd, app, map[string]any{
				"data": out.Batch.Perturbations,
				"meta": map[string]any{"topic": topic, "message": res.Message},
			})
		},
	}

	cmd.Flags().StringSliceVar(&types, "types", nil, "Criteria types to generate (default: server defaults)")
	return cmd
}
