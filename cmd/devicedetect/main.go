package main

import "github.com/dmitrymomot/devicedetect/internal/cli"

func main() {
	cli.Execute()
}
