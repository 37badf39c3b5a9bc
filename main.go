package main

import (
	"github.com/cs217/hlsweep/cmd"
)

func main() {
	cmd.Execute()
}
