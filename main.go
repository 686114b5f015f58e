package main

import "github.com/agroph/portal/cmd"

func main() {
	cmd.Execute()
}
