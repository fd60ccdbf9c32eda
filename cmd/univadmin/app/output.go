package app

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	json "github.com/bytedance/sonic"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"gopkg.in/yaml.v3"

	"github.com/moweilong/univadmin/cmd/univadmin/app/options"
	"github.com/moweilong/univadmin/pkg/errorsx"
)

const maxColWidth = 48

// printList writes items as a table, one row per item, or as a json array.
func (a *app) printList(w io.Writer, items []any) error {
	switch a.opts.Format {
	case options.FormatJSON:
		return printJSON(w, items)
	case options.FormatYAML:
		rows := make([]map[string]any, 0, len(items))
		for _, it := range items {
			row, err := toMap(it)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return printYAML(w, rows)
	}
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, color.HiBlackString("No results."))
		return err
	}

	rows := make([]map[string]any, 0, len(items))
	for _, it := range items {
		row, err := toMap(it)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	cols := columns(rows...)

	table := uitable.New()
	table.MaxColWidth = maxColWidth
	table.AddRow(header(cols...)...)
	for _, row := range rows {
		cells := make([]interface{}, len(cols))
		for i, c := range cols {
			cells[i] = cell(row[c])
		}
		table.AddRow(cells...)
	}
	_, err := fmt.Fprintln(w, table)
	return err
}

// printObject writes one item as a field/value table or as json.
func (a *app) printObject(w io.Writer, v any) error {
	if a.opts.Format == options.FormatJSON {
		return printJSON(w, v)
	}
	row, err := toMap(v)
	if err != nil {
		return err
	}
	if a.opts.Format == options.FormatYAML {
		return printYAML(w, row)
	}

	table := uitable.New()
	table.MaxColWidth = maxColWidth * 2
	table.Wrap = true
	for _, c := range columns(row) {
		table.AddRow(color.New(color.Bold).Sprint(c+":"), cell(row[c]))
	}
	_, err = fmt.Fprintln(w, table)
	return err
}

func printJSON(w io.Writer, v any) error {
	data, err := json.ConfigDefault.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printYAML writes v, decoded from json first so keys keep their json names.
func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err = json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("render %T: %w", v, err)
	}
	return out, nil
}

// columns returns the union of the keys of rows, id first and the rest sorted.
func columns(rows ...map[string]any) []string {
	seen := map[string]bool{}
	var cols []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] && k != "id" {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return append([]string{"id"}, cols...)
}

func header(cols ...string) []interface{} {
	out := make([]interface{}, len(cols))
	for i, c := range cols {
		out[i] = color.New(color.Bold).Sprint(strings.ToUpper(c))
	}
	return out
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []any:
		parts := make([]string, len(x))
		for i := range x {
			parts[i] = cell(x[i])
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(x)
	}
}

// PrintError writes err for a human, with the field errors of a rejected payload.
func PrintError(w io.Writer, err error) {
	var e *errorsx.Error
	if !errors.As(err, &e) {
		fmt.Fprintln(w, color.RedString("Error:"), err)
		return
	}

	fmt.Fprintln(w, color.RedString("Error:"), e.Message)
	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(w, "  %s: %s\n", color.YellowString(f), cell(e.Errors[f]))
	}
}
