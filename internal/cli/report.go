package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"verdict-cli/internal/publish"
)

func newReportCmd(app *App) *cobra.Command {
	var (
		asHTML    bool
		expandAll bool
		title     string
		out       string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "report [topic]",
		Short: "Render a topic's results as a markdown (or HTML) report",
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
			tb.SetPageSize(max(tb.Len(), 1))
			if expandAll {
				o.d.ExpandAll()
			}
			v := o.d.View()

			content := publish.RenderTopicMarkdown(topic, v, publish.RenderOptions{
				Title:       title,
				GeneratedAt: time.Now(),
			})
			if asHTML {
				pageTitle := title
				if pageTitle == "" {
					pageTitle = "AI behavior report: " + topic
				}
				if content, err = publish.RenderHTMLPage(pageTitle, content); err != nil {
					return writeErr(cmd, err)
				}
			}

			if out == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), content)
				return err
			}
			if err := publish.WriteFile(out, content, publish.WriteOptions{Overwrite: overwrite}); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data":   map[string]any{"written": out, "summary": publish.Summarize(v)},
				"_hints": o.hints(),
			})
		},
	}

	cmd.Flags().BoolVar(&asHTML, "html", false, "Render HTML instead of markdown")
	cmd.Flags().BoolVar(&expandAll, "expand-all", false, "Include every generated variant")
	cmd.Flags().StringVar(&title, "title", "", "Report title")
	cmd.Flags().StringVar(&out, "out", "", "Write the report to this file instead of stdout")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite --out if it exists")
	return cmd
}
