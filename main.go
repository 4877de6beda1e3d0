package main

import "github/chapool/batch-sender/cmd"

func main() {
	cmd.Execute()
}
