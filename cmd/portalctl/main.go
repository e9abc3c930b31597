package main

import "go.pilab.hu/citizenportal/cmd/portalctl/cmd"

func main() {
	cmd.Execute()
}
