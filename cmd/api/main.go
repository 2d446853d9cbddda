package main

import "github.com/zhouzirui/z-chat/backend/cmd/api/commands"

func main() {
	commands.Execute()
}
