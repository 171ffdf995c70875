package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"verdict-cli/internal/api"
	"verdict-cli/internal/session"
)

// topicArg picks the topic from the first positional arg, --topic, or the configured
// current topic, in that order.
func topicArg(app *App, args []string, flag string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	if t := strings.TrimSpace(flag); t != "" {
		return t, nil
	}
	if t := strings.TrimSpace(app.config().CurrentTopic); t != "" {
		return t, nil
	}
	return "", errors.New("no topic selected: pass a topic or run `verdict topics use <topic>`")
}

type openedTopic struct {
	d   *session.Dashboard
	svc api.Service
	// stale is set when the service could not be reached and the rows come from the
	// local snapshot.
	stale string
}

// openTopic loads topic into a fresh dashboard. When the fetch fails but a local snapshot
// exists, the snapshot is used and stale carries the failure message.
func openTopic(ctx context.Context, app *App, topic string) (*openedTopic, error) {
	svc, err := app.service()
	if err != nil {
		return nil, err
	}
	st, err := app.store()
	if err != nil {
		return nil, err
	}
	d := session.New(svc,
		session.WithStore(st),
		session.WithLogger(app.logger().Named("session")),
		session.WithPageSize(app.config().EffectivePageSize()))

	req, _ := d.SelectTopic(ctx, topic)
	res := d.ApplyLoad(ctx, d.Load(ctx, req))
	if res.OK {
		return &openedTopic{d: d, svc: svc}, nil
	}
	if d.Table().Len() > 0 {
		return &openedTopic{d: d, svc: svc, stale: res.Message}, nil
	}
	return nil, errResult(res)
}

// requireFresh rejects mutations against rows restored from the local snapshot.
func (o *openedTopic) requireFresh() error {
	if o.stale != "" {
		return errors.New(o.stale)
	}
	return nil
}

func (o *openedTopic) hints() []string {
	if o.stale == "" {
		return nil
	}
	return []string{"showing cached results: " + o.stale}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// splitList splits comma separated flag values and drops blanks.
func splitList(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
