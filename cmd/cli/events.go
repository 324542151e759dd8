package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	appsync "vrstore/internal/sync"
)

var (
	tcpAddr  string
	rawLines bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow the catalog change feed, reconnecting on failure",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		for {
			var err error
			if tcpAddr != "" {
				err = followTCP(ctx, tcpAddr)
			} else {
				err = followWS(ctx, baseURL)
			}
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "[events] disconnected: %v\n", err)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	},
}

func followTCP(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	fmt.Fprintf(os.Stderr, "[events] connected to %s\n", addr)
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		printEvent(sc.Bytes())
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return fmt.Errorf("connection closed by %s", addr)
}

func followWS(ctx context.Context, api string) error {
	wsURL, err := websocketURL(api)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	fmt.Fprintf(os.Stderr, "[events] connected to %s\n", wsURL)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		for _, line := range strings.Split(strings.TrimSpace(string(msg)), "\n") {
			printEvent([]byte(line))
		}
	}
}

// websocketURL maps the API base URL to its /ws endpoint.
func websocketURL(api string) (string, error) {
	u, err := url.Parse(api)
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func printEvent(line []byte) {
	if rawLines {
		fmt.Println(string(line))
		return
	}
	var ev appsync.AppEvent
	if err := json.Unmarshal(line, &ev); err != nil || ev.AppID == "" {
		// welcome banners and anything else unexpected
		fmt.Println(string(line))
		return
	}
	detail := ev.Title
	switch ev.Type {
	case appsync.EventAppMerged:
		detail += " [" + strings.Join(ev.Fields, ", ") + "]"
	case appsync.EventAppDownloaded:
		detail += fmt.Sprintf(" (%d downloads)", ev.Downloads)
	}
	fmt.Printf("%s  %-15s %s  %s\n", ev.At.Local().Format(time.TimeOnly), ev.Type, ev.AppID, detail)
}

func init() {
	eventsCmd.Flags().StringVar(&tcpAddr, "tcp", "", "read the TCP feed at this address instead of the websocket")
	eventsCmd.Flags().BoolVar(&rawLines, "raw", false, "print events as raw JSON lines")
	rootCmd.AddCommand(eventsCmd)
}
