// Command brewkiosk runs the drink kiosk controller and talks to a running
// one over its local API.
package main

import "github.com/tebeka/atexit"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
