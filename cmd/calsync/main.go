package main

import "github.com/nackswinget/calsync/internal/interfaces/cli"

func main() {
	cli.Execute()
}
