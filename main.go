package main

import "github.com/regwatch-id/bpk-crawler/cmd"

func main() {
	cmd.Execute()
}
