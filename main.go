package main

import "suapemap/cmd"

var version = "dev"

func main() {
	cmd.Execute(version)
}
