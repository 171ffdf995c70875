package main

import (
	"os"
	"strings"

	"verdict-cli/internal/cli"
)

// topicShorthand returns the topic named by an "@topic" token.
func topicShorthand(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "@") {
		return "", false
	}
	topic := strings.TrimSpace(strings.TrimPrefix(s, "@"))
	return topic, topic != ""
}

// rewriteTopicShorthandArgs turns `verdict @<topic>` into `verdict tests list <topic>`.
//
// Cobra treats the first non-flag token as a subcommand, so argv is rewritten before parsing.
// Persistent flags may come first (`verdict --dir ... @Energy`), so we look for the first
// positional token rather than argv[1].
func rewriteTopicShorthandArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--dir":       true,
		"--api-url":   true,
		"--timeout":   true,
		"--log-level": true,
		"--format":    true,
	}

	rewrite := func(i int, topic string) []string {
		out := make([]string, 0, len(argv)+2)
		out = append(out, argv[:i]...)
		out = append(out, "tests", "list", topic)
		return append(out, argv[i+1:]...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) {
				if topic, ok := topicShorthand(argv[i+1]); ok {
					return rewrite(i+1, topic)
				}
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			// Unknown flags are skipped without consuming a value.
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		}
		if topic, ok := topicShorthand(a); ok {
			return rewrite(i, topic)
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteTopicShorthandArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
