package main

import "github.com/cloudera/llama-sub000/internal/cli"

func main() {
	cli.Execute()
}
