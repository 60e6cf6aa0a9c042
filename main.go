package main

import "starlift/cmd"

func main() {
	cmd.Execute()
}
