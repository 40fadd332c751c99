package main

import "github.com/jsphweid/mmlcore/cmd"

func main() {
	cmd.Execute()
}
