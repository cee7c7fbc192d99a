package main

import "automations/cmd/cli"

func main() {
	cli.ExecuteCommand("migrate")
}
