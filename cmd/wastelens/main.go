package main

import "github.com/wastelens/wastelens/cmd/wastelens/commands"

func main() {
	commands.Execute()
}
