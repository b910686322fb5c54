package main

import "github.com/bryanchriswhite/toplevelctl/cmd/toplevelctl/commands"

func main() {
	commands.Execute()
}
