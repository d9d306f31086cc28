package main

import "github.com/hepworks/tcount/pkg/cli"

func main() {
	cli.Execute()
}
