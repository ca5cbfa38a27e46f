package main

import "snowadmin/cmd"

func main() {
	cmd.Execute()
}
