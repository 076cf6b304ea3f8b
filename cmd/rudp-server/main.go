// rudp-server is a thin demonstration program for the server demux: it
// binds a UDP socket, accepts peers, echoes every application payload
// it receives back to its sender on the same sub-command, and prints
// link-quality snapshots as they arrive.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ardatrace/rudp/internal/config"
	"github.com/ardatrace/rudp/internal/netio"
	"github.com/ardatrace/rudp/internal/peerengine"
	"github.com/ardatrace/rudp/internal/server"
	"github.com/ardatrace/rudp/internal/util"
)

var version = "dev"

var (
	listenAddr string
	configPath string
	debugMode  bool
	logFile    string
)

func main() {
	root := &cobra.Command{
		Use:     "rudp-server",
		Short:   "Run a reliable-UDP echo server",
		Version: version,
		RunE:    run,
	}

	root.Flags().StringVarP(&listenAddr, "listen", "l", ":9500", "UDP address to listen on")
	root.Flags().StringVarP(&configPath, "config", "c", "", "optional YAML config overriding protocol timing")
	root.Flags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	root.Flags().StringVar(&logFile, "log-file", "", "optional rotated JSON log file for warnings and errors")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if debugMode {
		util.EnableDebug()
	}
	if logFile != "" {
		util.EnableFileLogging(logFile, 50, 3, 28)
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	endpoint, conn, err := netio.NewUDPEndpoint("udp", listenAddr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", listenAddr, err)
	}
	defer conn.Close()

	pterm.Info.Printfln("rudp-server v%s — listening on %s", version, conn.LocalAddr())

	demux := server.NewDemux(endpoint, netio.NewSystemClock(), netio.NewRealScheduler(), cfg, peerengine.Hooks{
		OnNew: func(p *peerengine.Peer) {
			util.LogInfo("peer connected: %s", p.RemoteAddr())
		},
		OnDropped: func(p *peerengine.Peer) {
			util.LogInfo("peer dropped: %s", p.RemoteAddr())
		},
		OnApp: func(p *peerengine.Peer, sub uint8, data []byte) {
			util.LogDebug("peer %s app[%d]: %q", p.RemoteAddr(), sub, data)
			if err := p.SendReliable(sub, data); err != nil {
				util.LogWarning("echo to %s failed: %v", p.RemoteAddr(), err)
			}
		},
		OnLinkInfo: func(p *peerengine.Peer, info peerengine.LinkInfo) {
			util.LogDebug("peer %s link: srtt=%dms rto=%dms queue=%d", p.RemoteAddr(), info.SRTT, info.RTO, info.QueueDepth)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	util.StartStatsReporter(ctx)

	if err := demux.Run(ctx, conn); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	util.LogInfo("server shut down")
	return nil
}
