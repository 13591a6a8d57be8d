package main

import "github.com/shardstream/shardstream/cmd/shardstream/cmd"

func main() {
	cmd.Execute()
}
