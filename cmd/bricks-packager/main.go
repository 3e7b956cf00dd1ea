package main

import "github.com/oshokin/bricks-bootstrap/cmd/bricks-packager/cmd"

func main() {
	cmd.Execute()
}
