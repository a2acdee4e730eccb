package main

import "github.com/shrey23812/trust/cmd"

func main() {
	cmd.Execute()
}
