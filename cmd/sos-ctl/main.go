package main

import "github.com/oshokin/sos-beacon/cmd/sos-ctl/cmd"

func main() {
	cmd.Execute()
}
