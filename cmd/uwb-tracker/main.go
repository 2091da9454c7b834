package main

import "github.com/oshokin/uwb-tracker/cmd/uwb-tracker/cmd"

func main() {
	cmd.Execute()
}
