package main

import (
	"fmt"
	"os"

	"github.com/bmeg/datacheck/cmd"
	"github.com/bmeg/datacheck/cmd/cmdutil"
)

func main() {
	err := cmd.RootCmd.Execute()
	if ferr := cmdutil.Finish(); ferr != nil {
		fmt.Println("Error writing metrics:", ferr.Error())
	}
	if err != nil {
		fmt.Println("Error:", err.Error())
		os.Exit(1)
	}
}
