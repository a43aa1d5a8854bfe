package main

import "github.com/heraldbot/herald/cmd"

func main() {
	cmd.Execute()
}
