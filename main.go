package main

import "github.com/audiolibrelab/capturewav/cmd"

func main() {
	cmd.Execute()
}
