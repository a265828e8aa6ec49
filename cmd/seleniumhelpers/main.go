package main

import "github.com/wanmail/seleniumhelpers/internal/cli"

func main() {
	cli.Execute()
}
