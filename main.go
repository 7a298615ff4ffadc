/*
Copyright © 2023 OpenTDF opentdf@virtru.com
*/
package main

import "github.com/opentdf/ctivault/cmd"

func main() {
	cmd.Execute()
}
