package main

import "github.com/agentic-research/codegraf/cmd"

func main() {
	cmd.Execute()
}
