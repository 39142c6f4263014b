package main

import "github.com/MeKo-Tech/handwriter/cmd/handwriter/cmd"

func main() {
	cmd.Execute()
}
