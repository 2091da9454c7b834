package main

import "github.com/oshokin/uwb-tracker/cmd/uwb-simulator/cmd"

func main() {
	cmd.Execute()
}
