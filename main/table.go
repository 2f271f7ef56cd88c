package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

func writeTable(out io.Writer, header []string, rows [][]string) {
	w := tabwriter.NewWriter(out, 2, 5, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
}
