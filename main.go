package main

import "github.com/averhoeven/roster-management/cmd"

func main() {
	cmd.Execute()
}
