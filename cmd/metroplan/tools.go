package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v2"

	"metroplan/internal/cache"
	"metroplan/internal/domain"
	"metroplan/internal/planner"
	"metroplan/internal/store"
	"metroplan/pkg/topology"
)

var topologyFlag = &cli.StringFlag{
	Name:     "topology",
	Aliases:  []string{"t"},
	Usage:    "topology file path or http(s) URL",
	EnvVars:  []string{"TOPOLOGY_SOURCE"},
	Required: true,
}

func loadSnapshot(ctx context.Context, source string, logger *slog.Logger) (*store.Snapshot, error) {
	res, err := topology.NewLoader(source, 0, "", logger).Load(ctx)
	if err != nil {
		return nil, err
	}
	return store.NewSnapshot(res.Topology, res.Fingerprint, res.Source, logger), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func planCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "plan a single journey and print the options as JSON",
		ArgsUsage: "FROM_STATION TO_STATION",
		Flags: []cli.Flag{
			topologyFlag,
			&cli.StringFlag{Name: "optimization", Aliases: []string{"o"}, Value: string(domain.OptimizeTime)},
			&cli.StringFlag{Name: "passenger", Aliases: []string{"p"}, Value: domain.DefaultPassengerType},
			&cli.IntFlag{Name: "max-transfers", Value: domain.DefaultMaxTransfers},
			&cli.IntFlag{Name: "max-walking", Value: domain.DefaultMaxWalkingMinutes},
			&cli.BoolFlag{Name: "fare", Usage: "also price the best option"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("expected FROM_STATION and TO_STATION, got %d arguments", c.NArg())
			}

			snap, err := loadSnapshot(c.Context, c.String("topology"), logger)
			if err != nil {
				return err
			}

			topologyStore := store.NewTopologyStore()
			topologyStore.Swap(snap)
			svc := planner.NewService(topologyStore, cache.NewRouteCache(0, 0, nil, logger), planner.ServiceConfig{}, logger)

			req := domain.NewPlanRequest()
			req.Origin = c.Args().Get(0)
			req.Destination = c.Args().Get(1)
			req.Optimization = domain.OptimizationMode(c.String("optimization"))
			req.PassengerType = c.String("passenger")
			req.MaxTransfers = c.Int("max-transfers")
			req.MaxWalkingMinutes = c.Int("max-walking")

			result, err := svc.Plan(c.Context, req)
			if err != nil {
				return err
			}
			if !c.Bool("fare") || len(result.Options) == 0 {
				return printJSON(c.App.Writer, result)
			}

			fare, err := svc.PriceRoute(c.Context, result.Options[0].ID, req.PassengerType)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, struct {
				domain.PlanResult
				Fare domain.FareCalculationResponse `json:"fare"`
			}{result, fare})
		},
	}
}

type checkReport struct {
	Version       string   `json:"version"`
	Currency      string   `json:"currency"`
	Stations      int      `json:"stations"`
	Lines         int      `json:"lines"`
	Nodes         int      `json:"nodes"`
	TransitEdges  int      `json:"transit_edges"`
	TransferEdges int      `json:"transfer_edges"`
	WalkEdges     int      `json:"walk_edges"`
	SkippedLines  []string `json:"skipped_lines,omitempty"`
}

func checkCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "parse and validate a topology document and print graph statistics",
		Flags: []cli.Flag{topologyFlag},
		Action: func(c *cli.Context) error {
			snap, err := loadSnapshot(c.Context, c.String("topology"), logger)
			if err != nil {
				return err
			}

			bs := snap.BuildStats()
			return printJSON(c.App.Writer, checkReport{
				Version:       snap.Version(),
				Currency:      snap.Currency(),
				Stations:      len(snap.Stations("")),
				Lines:         len(snap.Lines()),
				Nodes:         bs.Nodes,
				TransitEdges:  bs.TransitEdges,
				TransferEdges: bs.TransferEdges,
				WalkEdges:     bs.WalkEdges,
				SkippedLines:  bs.SkippedLines,
			})
		},
	}
}
