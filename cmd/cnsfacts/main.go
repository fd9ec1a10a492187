package main

import "github.com/NVIDIA/cns-facts/pkg/cli"

func main() {
	cli.Execute()
}
