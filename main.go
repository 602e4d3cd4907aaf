package main

import "whisperd/cmd"

func main() {
	cmd.Execute()
}
