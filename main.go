package main

import "github.com/vaultcron/vaultcron/cmd"

func main() {
	cmd.Execute()
}
