package main

import "github.com/emutools/objdiff/cmd"

func main() {
	cmd.Execute()
}
