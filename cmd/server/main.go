package main

import "automations/cmd/cli"

// server is automationctl run: flags such as --config and --migrate apply.
func main() {
	cli.ExecuteCommand("run")
}
