package logging

import (
	"encoding/json"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const (
	colorReset    = "\033[0m"
	colorBold     = "\033[1m"
	colorRed      = "\033[31m"
	colorBlue     = "\033[34m"
	colorGray     = "\033[37m"
	colorBgRed    = "\033[41m"
	colorBgYellow = "\033[43m"
	colorBgBlue   = "\033[44m"
)

var colorFromLevel = map[string]string{
	"trace": colorGray,
	"debug": colorGray,
	"info":  colorBgBlue,
	"warn":  colorBgYellow,
	"error": colorBgRed,
	"fatal": colorBgRed,
	"panic": colorBgRed,
}

// PrettyZerologWriter turns zerolog's JSON lines into something readable in
// a terminal. Fields are sorted by name and stack traces print one frame per
// line with paths relative to the working directory.
type PrettyZerologWriter struct {
	out                 io.Writer
	wd                  string
	color               bool
	wasLastLogMultiline bool
}

type prettyLogEntry struct {
	Timestamp  string
	Level      string
	Message    string
	Error      string
	StackTrace []interface{}

	OtherFields []prettyField
}

type prettyField struct {
	Name  string
	Value interface{}
}

func NewPrettyZerologWriter() *PrettyZerologWriter {
	return newPrettyZerologWriter(os.Stderr, isatty.IsTerminal(os.Stderr.Fd()) && os.Getenv("NO_COLOR") == "")
}

func newPrettyZerologWriter(out io.Writer, color bool) *PrettyZerologWriter {
	wd, _ := os.Getwd()
	return &PrettyZerologWriter{
		out:   out,
		wd:    wd,
		color: color,
	}
}

func (w *PrettyZerologWriter) c(code string) string {
	if w.color {
		return code
	}
	return ""
}

func (w *PrettyZerologWriter) Write(p []byte) (int, error) {
	var fields map[string]interface{}
	err := json.Unmarshal(p, &fields)
	if err != nil {
		return w.out.Write(p)
	}

	var pretty prettyLogEntry
	for name, val := range fields {
		switch name {
		case zerolog.TimestampFieldName:
			pretty.Timestamp, _ = val.(string)
		case zerolog.LevelFieldName:
			pretty.Level, _ = val.(string)
		case zerolog.MessageFieldName:
			pretty.Message, _ = val.(string)
		case zerolog.ErrorFieldName:
			pretty.Error, _ = val.(string)
		case zerolog.ErrorStackFieldName:
			pretty.StackTrace, _ = val.([]interface{})
		default:
			pretty.OtherFields = append(pretty.OtherFields, prettyField{
				Name:  name,
				Value: val,
			})
		}
	}

	sort.Slice(pretty.OtherFields, func(i, j int) bool {
		return pretty.OtherFields[i].Name < pretty.OtherFields[j].Name
	})

	isMultiline := pretty.Error != "" || pretty.StackTrace != nil || pretty.OtherFields != nil

	var b strings.Builder
	if isMultiline || w.wasLastLogMultiline {
		b.WriteString("---------------------------------------\n")
	}
	b.WriteString(pretty.Timestamp)
	b.WriteString(" ")
	if pretty.Level != "" {
		b.WriteString(w.c(colorFromLevel[pretty.Level]))
		b.WriteString(w.c(colorBold))
		b.WriteString(strings.ToUpper(pretty.Level))
		b.WriteString(w.c(colorReset))
		b.WriteString(": ")
	}
	b.WriteString(pretty.Message)
	b.WriteString("\n")
	if pretty.Error != "" {
		b.WriteString("  " + w.c(colorBold) + w.c(colorRed) + "ERROR:" + w.c(colorReset) + " ")
		b.WriteString(pretty.Error)
		b.WriteString("\n")
	}
	if len(pretty.OtherFields) > 0 {
		b.WriteString("  " + w.c(colorBold) + w.c(colorBlue) + "Fields:" + w.c(colorReset) + "\n")
		for _, field := range pretty.OtherFields {
			valuePretty, _ := json.MarshalIndent(field.Value, "    ", "  ")
			b.WriteString("    ")
			b.WriteString(field.Name)
			b.WriteString(": ")
			b.Write(valuePretty)
			b.WriteString("\n")
		}
	}
	if pretty.StackTrace != nil {
		b.WriteString("  " + w.c(colorBold) + w.c(colorBlue) + "Stack trace:" + w.c(colorReset) + "\n")
		for _, frame := range pretty.StackTrace {
			frameMap, ok := frame.(map[string]interface{})
			if !ok {
				continue
			}
			file, _ := frameMap["file"].(string)
			file = strings.Replace(file, w.wd, ".", 1)
			function, _ := frameMap["function"].(string)
			line, _ := frameMap["line"].(float64)

			b.WriteString("    ")
			b.WriteString(function)
			b.WriteString(" (")
			b.WriteString(file)
			b.WriteString(":")
			b.WriteString(strconv.Itoa(int(line)))
			b.WriteString(")\n")
		}
	}

	w.wasLastLogMultiline = isMultiline

	if _, err := w.out.Write([]byte(b.String())); err != nil {
		return 0, err
	}
	return len(p), nil
}
