package main

import "github.com/kiesman99/geoslice/cmd"

func main() {
	cmd.Execute()
}
