package main

import "github.com/custodia-labs/recall/internal/adapters/driving/cli"

func main() {
	cli.Execute()
}
