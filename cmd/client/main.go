package main

import "stockcount/cmd/client/cmd"

func main() {
	cmd.Execute()
}
