// gazectl - Command-line control of a running gazeserve.
//
//	gazectl list
//	gazectl gaze <agent> <target>
//	gazectl point <agent> x,y,z
//	gazectl front <agent>
//	gazectl stop <agent>
//	gazectl set <agent> '{predictability: 0.5, stylize_gaze: true}'
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/internal/httpc"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/web"
)

func main() {
	addr := flag.String("addr", config.Addr(), "gazeserve address")
	timeout := flag.Duration("timeout", 5*time.Second, "Request timeout")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: gazectl [-addr host:port] list|gaze|point|front|stop|set ...")
		flag.PrintDefaults()
	}
	flag.Parse()
	log.InitWriter(config.LogLevel(), os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, httpc.New(*addr), flag.Args()); err != nil {
		log.Error("gazectl failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *httpc.Client, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return fmt.Errorf("missing command")
	}
	cmd, args := args[0], args[1:]
	if cmd != "list" && len(args) == 0 {
		return fmt.Errorf("%s: missing agent", cmd)
	}

	switch cmd {
	case "list":
		return list(ctx, c)
	case "gaze":
		if len(args) != 2 {
			return fmt.Errorf("gaze: want <agent> <target>")
		}
		return c.Gaze(ctx, args[0], web.GazeRequest{Target: args[1]})
	case "point":
		if len(args) != 2 {
			return fmt.Errorf("point: want <agent> x,y,z")
		}
		p, err := parsePoint(args[1])
		if err != nil {
			return err
		}
		return c.Gaze(ctx, args[0], web.GazeRequest{Point: p})
	case "front":
		return c.Gaze(ctx, args[0], web.GazeRequest{Front: true})
	case "stop":
		return c.Stop(ctx, args[0])
	case "set":
		if len(args) != 2 {
			return fmt.Errorf("set: want <agent> <yaml patch>")
		}
		var p gaze.ParamPatch
		if err := yaml.Unmarshal([]byte(args[1]), &p); err != nil {
			return fmt.Errorf("set: %w", err)
		}
		cfg, err := c.UpdateParams(ctx, args[0], p)
		if err != nil {
			return err
		}
		return yaml.NewEncoder(os.Stdout).Encode(cfg)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func list(ctx context.Context, c *httpc.Client) error {
	agents, err := c.Agents(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tGAZE\tTARGET\tTARGETS")
	for _, a := range agents {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Name, a.States["gaze"], a.Target, strings.Join(a.Targets, ","))
	}
	return tw.Flush()
}

func parsePoint(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("point %q: want x,y,z", s)
	}
	p := make([]float64, 3)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("point %q: %w", s, err)
		}
		p[i] = v
	}
	return p, nil
}
