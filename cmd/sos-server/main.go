package main

import "github.com/oshokin/sos-beacon/cmd/sos-server/cmd"

func main() {
	cmd.Execute()
}
