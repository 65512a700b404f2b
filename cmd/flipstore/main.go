// Package main provides the flipstore CLI.
package main

import "github.com/mesh-intelligence/flipstore/internal/cli"

func main() {
	cli.Execute()
}
