package main

import "github.com/SloeberX/auction-tracker/internal/cli"

func main() {
	cli.Execute()
}
