// Command replay reads an event journal and reconstructs the player
// state it describes, printing the result. Useful for auditing what a
// server instance broadcast during its lifetime.
package main

import (
	"flag"
	"fmt"
	"os"

	persistlog "terrainview.dev/internal/persistence/log"
	"terrainview.dev/internal/protocol"
)

func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory containing events/")
		verbose = flag.Bool("v", false, "print every journal entry")
	)
	flag.Parse()

	files, err := persistlog.ListEventFiles(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no journal files found under", *dataDir)
		os.Exit(1)
	}

	var players []protocol.Player
	var applied int
	for _, path := range files {
		err := persistlog.ReadFile(path, func(e persistlog.Entry) error {
			u, err := protocol.DecodeUpdate(e.Update)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if *verbose {
				fmt.Printf("%s %s %s\n", e.TS.Format("15:04:05.000"), e.Type, e.Update)
			}
			players = protocol.ApplyUpdate(players, u)
			applied++
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}

	fmt.Printf("replayed %d updates from %d files\n", applied, len(files))
	fmt.Printf("final state: %d players\n", len(players))
	for _, p := range players {
		fmt.Printf("  %s (%g, %g)\n", p.ID, p.X, p.Z)
	}
}
