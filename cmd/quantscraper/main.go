package main

import "quantscraper/internal/cli"

func main() {
	cli.Execute()
}
