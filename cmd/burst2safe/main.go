// Package main provides the entry point for the burst2safe CLI tool.
package main

import "github.com/asfadmin/burst2safe/cmd/burst2safe/cmd"

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
