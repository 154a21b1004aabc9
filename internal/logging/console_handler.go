package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const consoleTimeLayout = "2006-01-02 15:04:05"

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
	ansiGray   = "\x1b[90m"
)

// headerKeys are lifted out of the field list into the line header. At info
// and above they are not repeated below it.
var headerKeys = map[string]bool{
	FieldComponent: true,
	FieldJobID:     true,
	FieldUserID:    true,
	FieldStage:     true,
}

// consoleHandler prints one header line per record followed by indented
// key: value lines.
type consoleHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     *slog.LevelVar
	preset    []field
	groups    []string
	addSource bool
	color     bool
}

type field struct {
	key   string
	value slog.Value
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource, color bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, out: w, level: lvl, addSource: addSource, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := append([]field(nil), h.preset...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = flatten(fields, h.groups, attr)
		return true
	})
	fields = lastWins(fields)

	header := map[string]string{}
	body := make([]field, 0, len(fields))
	for _, f := range fields {
		if headerKeys[f.key] {
			header[f.key] = plainValue(f.value)
			if f.key == FieldComponent || record.Level >= slog.LevelInfo {
				continue
			}
		}
		body = append(body, f)
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var buf bytes.Buffer
	buf.WriteString(ts.Local().Format(consoleTimeLayout))
	buf.WriteByte(' ')
	if h.color {
		buf.WriteString(levelColor(record.Level) + levelLabel(record.Level) + ansiReset)
	} else {
		buf.WriteString(levelLabel(record.Level))
	}
	if c := header[FieldComponent]; c != "" {
		fmt.Fprintf(&buf, " [%s]", c)
	}
	if subject := FormatSubject(header[FieldUserID], header[FieldJobID], header[FieldStage]); subject != "" {
		buf.WriteByte(' ')
		buf.WriteString(subject)
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteString(" - ")
	buf.WriteString(msg)
	if src := record.Source(); h.addSource && src != nil {
		fmt.Fprintf(&buf, " [%s:%d]", filepath.Base(src.File), src.Line)
	}
	buf.WriteByte('\n')
	for _, f := range body {
		fmt.Fprintf(&buf, "    %s: %s\n", f.key, quotedValue(f.value))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

// FormatSubject renders the user/job/stage header segment, e.g.
// "alice/7f3c (transcribing)".
func FormatSubject(userID, jobID, stage string) string {
	userID = strings.TrimSpace(userID)
	jobID = strings.TrimSpace(jobID)
	stage = strings.TrimSpace(stage)

	subject := jobID
	if userID != "" && jobID != "" {
		subject = userID + "/" + jobID
	}
	switch {
	case subject != "" && stage != "":
		return subject + " (" + stage + ")"
	case subject != "":
		return subject
	default:
		return stage
	}
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.preset = append([]field(nil), h.preset...)
	for _, attr := range attrs {
		clone.preset = flatten(clone.preset, h.groups, attr)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// flatten appends attr to dst, expanding groups into dotted keys.
func flatten(dst []field, prefix []string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		inner := prefix
		if attr.Key != "" {
			inner = append(append([]string(nil), prefix...), attr.Key)
		}
		for _, member := range value.Group() {
			dst = flatten(dst, inner, member)
		}
		return dst
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(prefix, ".") + "." + key
	}
	return append(dst, field{key: key, value: value})
}

// lastWins drops earlier duplicates of a key, keeping the first position.
func lastWins(fields []field) []field {
	if len(fields) < 2 {
		return fields
	}
	at := make(map[string]int, len(fields))
	out := make([]field, 0, len(fields))
	for _, f := range fields {
		if f.key == "" {
			continue
		}
		if i, ok := at[f.key]; ok {
			out[i].value = f.value
			continue
		}
		at[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func plainValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

// quotedValue is plainValue with strings quoted when they contain
// whitespace, '=' or '"', or are empty.
func quotedValue(v slog.Value) string {
	s := plainValue(v)
	switch v.Kind() {
	case slog.KindString, slog.KindAny:
		if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
			return strconv.Quote(s)
		}
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed
	case level >= slog.LevelWarn:
		return ansiYellow
	case level >= slog.LevelInfo:
		return ansiCyan
	default:
		return ansiGray
	}
}
