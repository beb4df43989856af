package main

import "github.com/bryanchriswhite/xwin/cmd/xwin/commands"

func main() {
	commands.Execute()
}
