package main

import (
	"os"

	"github.com/Ramsey-B/matcher/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
