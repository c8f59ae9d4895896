package main

import "github.com/precountlive/precount/internal/cli"

func main() {
	cli.Execute()
}
