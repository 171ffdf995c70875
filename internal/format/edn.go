package format

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// WriteEDN writes an EDN rendering of v: maps with keyword keys, vectors, strings, numbers,
// booleans and nil. Keys come from v's json tags, with underscores turned into dashes
// (ground_truth becomes :ground-truth).
func WriteEDN(w io.Writer, v any, pretty bool) error {
	x, err := generic(v)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	e := ednEncoder{pretty: pretty, indent: 2}
	e.value(&buf, x, 0)
	buf.WriteByte('\n')
	_, err = w.Write(buf.Bytes())
	return err
}

type ednEncoder struct {
	pretty bool
	indent int
}

func (e ednEncoder) value(buf *bytes.Buffer, v any, level int) {
	switch t := v.(type) {
	case nil:
		buf.WriteString("nil")
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case string:
		buf.WriteString(strconv.Quote(t))
	case int64:
		buf.WriteString(strconv.FormatInt(t, 10))
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		buf.WriteString(s)
	case []any:
		e.collection(buf, '[', ']', len(t), level, func(i int) {
			e.value(buf, t[i], level+1)
		})
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e.collection(buf, '{', '}', len(keys), level, func(i int) {
			buf.WriteString(keyword(keys[i]))
			buf.WriteByte(' ')
			e.value(buf, t[keys[i]], level+1)
		})
	default:
		buf.WriteString(strconv.Quote(fmt.Sprint(v)))
	}
}

func (e ednEncoder) collection(buf *bytes.Buffer, open, close byte, n, level int, item func(i int)) {
	buf.WriteByte(open)
	if n == 0 {
		buf.WriteByte(close)
		return
	}
	pad := strings.Repeat(" ", (level+1)*e.indent)
	for i := 0; i < n; i++ {
		switch {
		case e.pretty:
			buf.WriteByte('\n')
			buf.WriteString(pad)
		case i > 0:
			buf.WriteByte(' ')
		}
		item(i)
	}
	if e.pretty {
		buf.WriteByte('\n')
		buf.WriteString(strings.Repeat(" ", level*e.indent))
	}
	buf.WriteByte(close)
}

func keyword(k string) string {
	k = strings.TrimSpace(k)
	k = strings.NewReplacer("_", "-", " ", "-").Replace(k)
	if k == "" {
		return `:_`
	}
	return ":" + k
}
