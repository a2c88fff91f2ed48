package main

import (
	"github.com/charliek/snag/internal/cli"
)

func main() {
	cli.Execute()
}
