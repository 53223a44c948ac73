package main

import "github.com/josephlewis42/subsh/cmd"

func main() {
	cmd.Execute()
}
