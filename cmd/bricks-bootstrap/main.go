package main

import "github.com/oshokin/bricks-bootstrap/cmd/bricks-bootstrap/cmd"

func main() {
	cmd.Execute()
}
