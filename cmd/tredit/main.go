package main

import "github.com/forPelevin/tredit/internal/cli"

func main() {
	cli.Main()
}
