package main

import "github.com/ddramp/exchange/internal/cli"

func main() {
	cli.Execute()
}
