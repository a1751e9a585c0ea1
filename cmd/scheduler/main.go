// Package main is the entry point for the scheduling agent.
package main

// version will be set by the build
var version = "dev"

func main() {
	SetVersion(version)
	Execute()
}
