package main

import "github.com/nexus-hq/nexusd/internal/cli"

func main() {
	cli.Execute()
}
