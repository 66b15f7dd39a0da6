package main

import "tokenservice/backend/internal/cli"

func main() {
	cli.Execute()
}
