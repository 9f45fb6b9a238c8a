package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// tone classifies a report line for its tag and colour.
type tone int

const (
	toneInfo tone = iota
	toneGood
	toneWarn
	toneBad
)

var toneStyles = map[tone]struct {
	tag    string
	colors text.Colors
}{
	toneInfo: {"INFO", text.Colors{text.FgBlue}},
	toneGood: {"OK", text.Colors{text.FgGreen}},
	toneWarn: {"WARN", text.Colors{text.FgYellow}},
	toneBad:  {"ERROR", text.Colors{text.FgRed}},
}

func toneFor(ok bool) tone {
	if ok {
		return toneGood
	}
	return toneBad
}

const labelWidth = 20

// printer writes command reports. Colour is applied only when out is a
// terminal, so captured output stays plain.
type printer struct {
	out   io.Writer
	color bool
}

func newPrinter(out io.Writer) *printer {
	p := &printer{out: out}
	if file, ok := out.(*os.File); ok {
		fd := file.Fd()
		p.color = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	return p
}

func (p *printer) tint(t tone, s string) string {
	if !p.color {
		return s
	}
	return toneStyles[t].colors.Sprint(s)
}

func (p *printer) blank() {
	fmt.Fprintln(p.out)
}

func (p *printer) section(title string) {
	heading := "== " + strings.TrimSpace(title) + " =="
	fmt.Fprintln(p.out, p.tint(toneInfo, heading))
	fmt.Fprintln(p.out, p.tint(toneInfo, strings.Repeat("-", len(heading))))
}

// field prints an aligned "label: value" line.
func (p *printer) field(label, value string) {
	fmt.Fprintf(p.out, "  %-*s %s\n", labelWidth, label+":", value)
}

// status prints a field whose value carries a [TAG] for t.
func (p *printer) status(label string, t tone, detail string) {
	value := "[" + toneStyles[t].tag + "]"
	if detail != "" {
		value += " " + detail
	}
	fmt.Fprintln(p.out, p.tint(t, fmt.Sprintf("  %-*s %s", labelWidth, label+":", value)))
}

// table renders rows under headers. Columns listed in numeric are right
// aligned; short rows are padded.
func (p *printer) table(headers []string, rows [][]string, numeric ...int) {
	if len(headers) == 0 {
		return
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(widen(headers, len(headers)))
	for _, row := range rows {
		tw.AppendRow(widen(row, len(headers)))
	}
	configs := make([]table.ColumnConfig, 0, len(numeric))
	for _, column := range numeric {
		configs = append(configs, table.ColumnConfig{Number: column + 1, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	fmt.Fprintln(p.out, tw.Render())
}

func widen(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	return row
}
