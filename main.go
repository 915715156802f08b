package main

import "github.com/hyperdot/hyperdot-node/cmd"

func main() {
	cmd.Execute()
}
