// migrate runs DB migrations from embedded SQL: go run ./cmd/migrate [-direction up|down] [-version].
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"session-gate/internal/config"
	"session-gate/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	showVersion := flag.Bool("version", false, "Print the applied schema version and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, migrate.ErrNoDSN)
		os.Exit(1)
	}

	if *showVersion {
		version, dirty, ok, err := migrate.Version(cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
		switch {
		case !ok:
			fmt.Println("no migrations applied")
		case dirty:
			fmt.Printf("version %d (dirty)\n", version)
		default:
			fmt.Printf("version %d\n", version)
		}
		return
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			// Already at target version; success.
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
