package main

import "baudsniffer/cmd"

func main() {
	cmd.Execute()
}
