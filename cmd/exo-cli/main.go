// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"exo/internal/api"
	"exo/internal/errcode"
	"exo/internal/srcinfo"
)

func main() {
	quiet := false
	var scriptName string
	for _, arg := range os.Args[1:] {
		if arg == "--quiet" {
			quiet = true
			continue
		}
		scriptName = arg
	}

	if scriptName == "" {
		fmt.Println("Usage: exo-cli [--quiet] <script>")
		fmt.Println("Available scripts:")
		names := api.ScriptNames()
		sort.Strings(names)
		for _, n := range names {
			fmt.Printf("  %s\n", n)
		}
		os.Exit(1)
	}

	script, ok := api.LookupScript(scriptName)
	if !ok {
		color.Red("unknown script %q", scriptName)
		os.Exit(1)
	}

	pr := api.New(script.Seed())
	if !quiet {
		fmt.Println(pr.String())
	}

	for _, step := range script.Steps {
		next, label, err := step(pr)
		if err != nil {
			reportScheduleError(scriptName, err)
			os.Exit(1)
		}
		pr = next
		if !quiet {
			color.Green("-- %s --", label)
			fmt.Println(pr.String())
		}
	}

	color.Green("done: %s (%s)", scriptName, strings.Join(pr.Provenance(), " -> "))
}

// reportScheduleError prints err with the same Rust-style diagnostic
// formatting a tooling caller would get from internal/errcode, falling
// back to a bare message since scripts run against synthetic IR with no
// originating source text.
func reportScheduleError(scriptName string, err error) {
	r := errcode.NewReporter("", "")
	var ce *errcode.Error
	if e, ok := err.(*errcode.Error); ok {
		ce = e
	} else {
		ce = errcode.New(errcode.Bug, "%v", err)
	}
	fmt.Printf("script %q failed:\n", scriptName)
	fmt.Print(r.Format(ce, srcinfo.Position{}))
}
