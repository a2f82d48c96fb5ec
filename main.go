package main

import "github.com/naka-gawa/github-osrcp/cmd"

func main() {
	cmd.Execute()
}
