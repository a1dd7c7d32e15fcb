/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package main

import "github.com/fulmenhq/stigmergylite/cmd"

func main() {
	cmd.Execute()
}
