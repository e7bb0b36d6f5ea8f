package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// output prints tables for people and JSON for scripts.
type output struct {
	jsonMode bool
	w        io.Writer
	errW     io.Writer
}

func newOutput(w, errW io.Writer, jsonMode bool) *output {
	return &output{jsonMode: jsonMode, w: w, errW: errW}
}

// Print writes rows as a table, or jsonData in JSON mode.
func (o *output) Print(headers []string, rows [][]string, jsonData any) error {
	if o.jsonMode {
		return o.JSON(jsonData)
	}
	return o.Table(headers, rows)
}

func (o *output) Table(headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func (o *output) JSON(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Success writes a status message to stderr so stdout stays parseable.
func (o *output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}
