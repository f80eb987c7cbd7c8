// Command njtreectl is the expansion CLI for computing and managing
// Neighbor-Joining runs: run a single join, persist it, upload its
// artifacts, or sweep process counts for a benchmark comparison.
package main

import "github.com/panjo/njtree/cmd/njtreectl/cmd"

func main() {
	cmd.Execute()
}
