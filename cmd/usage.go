package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// BinaryName - name of run application binary
var BinaryName = strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))

func printUsage(out io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(out, "Line based chat relay over TCP\n\n\t%s [options] -server|-client\n\t%s [options] s|c\n\nOptions:\n\n",
		BinaryName, BinaryName)
	fs.PrintDefaults()
	fmt.Fprint(out, "\nEnvironment:\n\n")
	printEnvironment(out)
	fmt.Fprint(out, "\n")
}

// printEnvironment renders one row per Config field from its env tag.
func printEnvironment(out io.Writer) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Variable", "Default"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, row := range environmentRows() {
		table.Append(row)
	}
	table.Render()
}

func environmentRows() [][]string {
	var rows [][]string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		tag, ok := t.Field(i).Tag.Lookup("env")
		if !ok {
			continue
		}
		parts := strings.Split(tag, ",")
		def := "-"
		for _, p := range parts[1:] {
			if v, found := strings.CutPrefix(p, "default="); found {
				def = v
			}
		}
		rows = append(rows, []string{parts[0], def})
	}
	return rows
}
