// The main package for the web-archiver executable.
package main

import (
	"github.com/JakeFAU/web-archiver/cmd"
)

func main() {
	cmd.Execute()
}
