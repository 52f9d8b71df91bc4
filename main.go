package main

import "github.com/agentic-research/iotree/cmd"

func main() {
	cmd.Execute()
}
