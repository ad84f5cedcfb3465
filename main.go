package main

import "github.com/macross-trading/macross/cmd"

func main() {
	cmd.Execute()
}
