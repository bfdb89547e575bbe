package main

import "github.com/shouni/go-web-scan/v2/cmd"

func main() {
	cmd.Execute()
}
