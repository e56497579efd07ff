// Command poe2arb fetches poe.ninja market data through an allowlisted gateway.
package main

import "github.com/princespaghetti/poe2arb/internal/cli"

func main() {
	cli.Execute()
}
