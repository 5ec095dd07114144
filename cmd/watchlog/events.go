package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"watchlog/internal/logging"
)

const reconnectDelay = time.Second

func (a *app) eventsCmd() *cobra.Command {
	var (
		addr   string
		wsURL  string
		pretty bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail title change events from the API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			for {
				var err error
				if wsURL != "" {
					err = tailWS(ctx, wsURL, out, pretty)
				} else {
					err = tailTCP(ctx, addr, out, pretty)
				}
				if ctx.Err() != nil {
					return nil
				}
				logging.Warn().Err(err).Msg("event feed disconnected, reconnecting")

				select {
				case <-ctx.Done():
					return nil
				case <-time.After(reconnectDelay):
				}
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7070", "TCP feed address")
	cmd.Flags().StringVar(&wsURL, "ws", "", "websocket feed URL such as ws://localhost:8080/ws (overrides --addr)")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "pretty print JSON events")
	return cmd
}

func tailTCP(ctx context.Context, addr string, out io.Writer, pretty bool) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	logging.Info().Str("addr", addr).Msg("connected to event feed")

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		printEvent(out, sc.Bytes(), pretty)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

func tailWS(ctx context.Context, url string, out io.Writer, pretty bool) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer ws.Close()

	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	logging.Info().Str("url", url).Msg("connected to event feed")

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		printEvent(out, msg, pretty)
	}
}

func printEvent(out io.Writer, line []byte, pretty bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	if !pretty {
		fmt.Fprintln(out, string(line))
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, line, "", "  "); err != nil {
		// not JSON, print raw
		fmt.Fprintln(out, string(line))
		return
	}
	fmt.Fprintln(out, buf.String())
}
