package main

import "github.com/LeJamon/goOfferd/internal/cli"

func main() {
	cli.Execute()
}
