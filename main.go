// Ghostnet is a real-time multiplayer inverted-Pac-Man server: up to four
// human players each drive one ghost over a websocket connection, hunting a
// single AI-controlled Pac-Man through a shared maze. Match state, movement,
// and collisions are simulated authoritatively per room; human input is
// advisory only in the sense that a move into a wall is not rejected with an
// error but held in a buffer until it becomes legal.
package main

import (
	"flag"
	"fmt"
	"log"

	"ghostnet/config"
	"ghostnet/maze"
	"ghostnet/registry"
	"ghostnet/stats"
	"ghostnet/transport"

	"ghostnet/brains/tabular"
)

var (
	configPath *string
	port       *string
)

// TODO: per 12-factor rules these should be taken from env or a config-map; KISS for now.
func init() {
	configPath = flag.String("config", "./config.yaml", "path to the server config file")
	port = flag.String("port", "", "override the config file's port")
	flag.Parse()
}

func runApp() error {
	cfg, err := config.FromYaml(*configPath)
	if err != nil {
		log.Println("config: falling back to defaults:", err)
		cfg = config.Default()
	}
	if *port != "" {
		cfg.Port = *port
	}

	m := maze.MustReference()
	statsAgg := stats.New()
	reg := registry.New(m, cfg, statsAgg, nil, "")

	if cfg.ModelFilePath != "" {
		go loadTabularPolicy(cfg.ModelFilePath, reg)
	}

	srv := transport.NewServer(":"+cfg.Port, reg)
	log.Println("ghostnet: listening on", cfg.Port)
	return srv.Serve()
}

// loadTabularPolicy loads a trained policy file in the background so rooms
// created before it finishes loading keep running on the heuristic brains,
// per spec.md §5's non-blocking-upgrade rule.
func loadTabularPolicy(path string, reg *registry.Registry) {
	policy, err := tabular.Load(path, tabular.DefaultAggregationWeights())
	if err != nil {
		log.Println("tabular: policy load failed, staying on heuristic brains:", err)
		return
	}
	reg.SetTabularPolicy(policy)
	log.Println("tabular: policy loaded from", path)
}

func main() {
	if err := runApp(); err != nil {
		fmt.Println(err)
	}
}
