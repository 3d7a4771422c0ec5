package main

import "sopqa/internal/cli"

func main() {
	cli.Execute()
}
