package main

import "github.com/encodeous/rani/cmd"

func main() {
	cmd.Execute()
}
