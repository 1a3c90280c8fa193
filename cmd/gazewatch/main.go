// gazewatch - Tails the state stream of a running gazeserve and prints one
// line per agent per frame.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/agent"
)

const reconnectDelay = 2 * time.Second

type frame struct {
	Type string         `json:"type"`
	Seq  uint64         `json:"seq"`
	Data []agent.Status `json:"data"`
}

func main() {
	addr := flag.String("addr", config.Addr(), "gazeserve address (host:port)")
	every := flag.Int("every", 10, "Print every Nth frame")
	raw := flag.Bool("raw", false, "Print raw JSON frames")
	filter := flag.String("agent", "", "Only show this agent (name or ID)")
	flag.Parse()
	log.InitWriter(config.LogLevel(), os.Stderr)

	host := *addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws/state"}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for {
		err := watch(ctx, u.String(), *every, *raw, *filter)
		if ctx.Err() != nil {
			return
		}
		log.Warn("stream lost, reconnecting", "url", u.String(), "error", err, "in", reconnectDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func watch(ctx context.Context, u string, every int, raw bool, filter string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Info("connected", "url", u)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-done:
		}
	}()

	n := 0
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		n++
		if every > 1 && n%every != 0 {
			continue
		}
		if raw {
			fmt.Println(string(msg))
			continue
		}
		var f frame
		if err := json.Unmarshal(msg, &f); err != nil {
			log.Warn("bad frame", "error", err)
			continue
		}
		for _, st := range f.Data {
			if filter != "" && filter != st.Name && filter != st.ID {
				continue
			}
			fmt.Println(formatStatus(f.Seq, st))
		}
	}
}

func formatStatus(seq uint64, st agent.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%-6d %-10s t=%7.2f gaze=%-8s", seq, st.Name, st.Time, st.States["gaze"])
	if bs, ok := st.States["blink"]; ok {
		fmt.Fprintf(&b, " blink=%-12s lids=%.2f", bs, st.Blink[0])
	}
	if st.Target != "" {
		fmt.Fprintf(&b, " target=%s", st.Target)
	}
	for _, j := range st.Joints {
		fmt.Fprintf(&b, " %s=(%.1f,%.1f)", j.Name, j.Yaw, j.Pitch)
	}
	return b.String()
}
