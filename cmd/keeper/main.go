package main

import "activity-keeper/cmd/keeper/commands"

func main() {
	commands.Execute()
}
