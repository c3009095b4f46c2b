package main

import "github.com/nimburion/endpointstore/pkg/cli"

func main() {
	cli.Execute(cli.NewRootCommand(cli.Options{
		Name:        "endpointstore",
		Description: "Object store over a remote endpoints API",
	}))
}
