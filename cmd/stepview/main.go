package main

import "github.com/chazu/stepview/cmd/stepview/cmd"

func main() {
	cmd.Execute()
}
