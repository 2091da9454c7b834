package main

import "github.com/oshokin/uwb-tracker/cmd/uwb-watch/cmd"

func main() {
	cmd.Execute()
}
