package main

import "github.com/statium/shrample/cmd"

// TODO: dense mass matrix option for strongly correlated posteriors

// TODO: checkpointing for chains (so we can freeze and continue) - which means
//       model/sampler/chain state all need to round-trip

func main() {
	cmd.Execute()
}
