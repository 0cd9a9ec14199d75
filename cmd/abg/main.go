package main

import "github.com/ogulcanaydogan/Azure-Budget-Guardian/internal/cli"

func main() {
	cli.Execute()
}
