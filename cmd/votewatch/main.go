package main

import "github.com/vietddude/votewatch/internal/cli"

func main() {
	cli.Execute()
}
