package main

import "github.com/endorses/osmon/cmd"

func main() {
	cmd.Execute()
}
