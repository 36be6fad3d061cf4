package main

import "github.com/hotshot-tools/hotshot/cmd/hotshot/commands"

func main() {
	commands.Execute()
}
