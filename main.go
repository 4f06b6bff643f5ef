package main

import "github.com/lockplane/cfplane/cmd"

func main() {
	cmd.Execute()
}
