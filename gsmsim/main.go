// Command gsmsim runs GSM signaling scenarios.
package main

import "github.com/sarchlab/gsmsim/gsmsim/cmd"

func main() {
	cmd.Execute()
}
