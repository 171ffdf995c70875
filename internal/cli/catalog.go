package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"verdict-cli/internal/api"
	"verdict-cli/internal/model"
	"verdict-cli/internal/store"
)

// parseTestFlag reads "acceptable: statement" (or "unacceptable: ...").
func parseTestFlag(s string) (model.NewTest, error) {
	gt, stmt, ok := strings.Cut(s, ":")
	if !ok {
		return model.NewTest{}, fmt.Errorf("invalid --test %q (want <acceptable|unacceptable>: <statement>)", s)
	}
	return model.NewTest{Statement: stmt, GroundTruth: model.GroundTruth(strings.TrimSpace(gt))}, nil
}

// readNewTests collects statements from --test flags and an optional YAML or JSON file
// holding a list of {test, ground_truth}.
func readNewTests(flags []string, file string) ([]model.NewTest, error) {
	var out []model.NewTest
	for _, f := range flags {
		t, err := parseTestFlag(f)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if file = strings.TrimSpace(file); file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		var fromFile []model.NewTest
		if err := yaml.Unmarshal(b, &fromFile); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		out = append(out, fromFile...)
	}
	return model.CleanNewTests(out)
}

func newTopicsCreateCmd(app *App) *cobra.Command {
	var (
		prompt string
		tests  []string
		file   string
		use    bool
	)
	cmd := &cobra.Command{
		Use:   "create <topic> --prompt <text>",
		Short: "Create a topic with its grading prompt and first statements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nt, err := readNewTests(tests, file)
			if err != nil {
				return writeErr(cmd, err)
			}
			cat, err := app.catalog()
			if err != nil {
				return writeErr(cmd, err)
			}
			topic := strings.TrimSpace(args[0])
			msg, err := cat.CreateTopic(commandContext(cmd), model.CreateTopicRequest{
				Topic:       topic,
				PromptTopic: prompt,
				Tests:       nt,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			if use {
				cfg := app.config()
				cfg.CurrentTopic = topic
				if err := store.SaveConfig(cfg); err != nil {
					return writeErr(cmd, err)
				}
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"topic":   topic,
				"tests":   len(nt),
				"message": msg.Message,
			}})
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "Grading prompt for the topic (required)")
	cmd.Flags().StringArrayVar(&tests, "test", nil, `Statement as "<acceptable|unacceptable>: <text>" (repeatable)`)
	cmd.Flags().StringVar(&file, "file", "", "YAML or JSON list of {test, ground_truth}")
	cmd.Flags().BoolVar(&use, "use", false, "Make the new topic current")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func newTestsAddCmd(app *App) *cobra.Command {
	var (
		topicFlag string
		tests     []string
		file      string
	)
	cmd := &cobra.Command{
		Use:   "add [topic]",
		Short: "Add hand-written statements to a topic",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, err := topicArg(app, args, topicFlag)
			if err != nil {
				return writeErr(cmd, err)
			}
			nt, err := readNewTests(tests, file)
			if err != nil {
				return writeErr(cmd, err)
			}
			cat, err := app.catalog()
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := cat.AddStatements(commandContext(cmd), topic, nt)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data":   map[string]any{"topic": topic, "added": res.AddedCount},
				"_hints": []string{fmt.Sprintf("Successfully added %d statements to %q", res.AddedCount, topic)},
			})
		},
	}
	cmd.Flags().StringVar(&topicFlag, "topic", "", "Topic (default: current topic)")
	cmd.Flags().StringArrayVar(&tests, "test", nil, `Statement as "<acceptable|unacceptable>: <text>" (repeatable)`)
	cmd.Flags().StringVar(&file, "file", "", "YAML or JSON list of {test, ground_truth}")
	return cmd
}

func newTestsGenerateCmd(app *App) *cobra.Command {
	var (
		topicFlag string
		criteria  string
		count     int
	)
	cmd := &cobra.Command{
		Use:   "generate [topic]",
		Short: "Have the service write new statements for a topic",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, err := topicArg(app, args, topicFlag)
			if err != nil {
				return writeErr(cmd, err)
			}
			cat, err := app.catalog()
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := cat.GenerateStatements(commandContext(cmd), api.StatementsRequest{
				Topic:    topic,
				Criteria: criteria,
				Count:    count,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data":   map[string]any{"topic": topic, "added": res.AddedCount},
				"_hints": []string{fmt.Sprintf("Successfully generated %d statements for %q", res.AddedCount, topic)},
			})
		},
	}
	cmd.Flags().StringVar(&topicFlag, "topic", "", "Topic (default: current topic)")
	cmd.Flags().StringVar(&criteria, "criteria", api.DefaultStatementCriteria, "Style of the new statements (base, paraphrase, negation, ...)")
	cmd.Flags().IntVarP(&count, "count", "n", 3, fmt.Sprintf("How many statements to write (1-%d)", api.MaxGeneratedStatements))
	return cmd
}

func newCriteriaShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a criteria type's prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := app.catalog()
			if err != nil {
				return writeErr(cmd, err)
			}
			info, err := cat.CriteriaInfo(commandContext(cmd), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": info})
		},
	}
}

// criteriaFlags are shared by add and edit.
type criteriaFlags struct {
	prompt string
	flip   bool
	topic  string
}

func (f *criteriaFlags) bind(cmd *cobra.Command, withTopic bool) {
	cmd.Flags().StringVar(&f.prompt, "prompt", "", "Instruction used to perturb statements (required)")
	cmd.Flags().BoolVar(&f.flip, "flip-label", false, "Variants are expected to reverse the original verdict")
	if withTopic {
		cmd.Flags().StringVar(&f.topic, "topic", "", "Topic the criteria belongs to (default: current topic)")
	}
	_ = cmd.MarkFlagRequired("prompt")
}

func newCriteriaAddCmd(app *App) *cobra.Command {
	var f criteriaFlags
	cmd := &cobra.Command{
		Use:   "add <name> --prompt <text>",
		Short: "Add a custom criteria type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, err := topicArg(app, nil, f.topic)
			if err != nil {
				return writeErr(cmd, err)
			}
			cat, err := app.catalog()
			if err != nil {
				return writeErr(cmd, err)
			}
			info := model.CriteriaInfo{Name: args[0], Prompt: f.prompt, FlipLabel: f.flip, Topic: topic}
			msg, err := cat.AddCriteria(commandContext(cmd), info)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": info, "_hints": []string{msg.Message}})
		},
	}
	f.bind(cmd, true)
	return cmd
}

func newCriteriaEditCmd(app *App) *cobra.Command {
	var f criteriaFlags
	cmd := &cobra.Command{
		Use:   "edit <name> --prompt <text>",
		Short: "Change a custom criteria type's prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := app.catalog()
			if err != nil {
				return writeErr(cmd, err)
			}
			info := model.CriteriaInfo{Name: args[0], Prompt: f.prompt, FlipLabel: f.flip}
			msg, err := cat.EditCriteria(commandContext(cmd), info)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": info, "_hints": []string{msg.Message}})
		},
	}
	f.bind(cmd, false)
	return cmd
}

func newCriteriaDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a custom criteria type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := app.catalog()
			if err != nil {
				return writeErr(cmd, err)
			}
			if _, err := cat.DeleteCriteria(commandContext(cmd), args[0]); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"name": strings.TrimSpace(args[0]), "deleted": true}})
		},
	}
}

func newCriteriaTryCmd(app *App) *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "try <statement> --prompt <text>",
		Short: "Preview what a criteria prompt does to one statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := app.catalog()
			if err != nil {
				return writeErr(cmd, err)
			}
			out, err := cat.TryCriteriaPrompt(commandContext(cmd), prompt, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"original": args[0], "perturbed": out}})
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "Instruction to try (required)")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func newCriteriaDefaultsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "defaults <config>",
		Short: "List the criteria a service configuration generates by default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := app.catalog()
			if err != nil {
				return writeErr(cmd, err)
			}
			types, err := cat.DefaultCriteria(commandContext(cmd), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": types})
		},
	}
}

func newModelsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"model"},
		Short:   "Grading model commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the grading models the service offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := app.catalog()
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := commandContext(cmd)
			models, err := cat.ListModels(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			current := app.config().Model
			if cur, err := cat.CurrentModel(ctx); err == nil && cur.ID != "" {
				current = cur.ID
			}
			return writeOut(cmd, app, map[string]any{"data": models, "meta": map[string]any{"current": current}})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "current",
		Short: "Show the grading model in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := app.catalog()
			if err != nil {
				return writeErr(cmd, err)
			}
			cur, err := cat.CurrentModel(commandContext(cmd))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": cur})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "use <model-id>",
		Short: "Select the grading model and remember it for cache commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := app.catalog()
			if err != nil {
				return writeErr(cmd, err)
			}
			id := strings.TrimSpace(args[0])
			if err := cat.SelectModel(commandContext(cmd), id); err != nil {
				return writeErr(cmd, err)
			}
			cfg := app.config()
			cfg.Model = id
			if err := store.SaveConfig(cfg); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"model": id}})
		},
	})
	return cmd
}
