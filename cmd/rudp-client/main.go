// rudp-client is a thin demonstration program for the client shell: it
// connects to a rudp-server, forwards each stdin line as a reliable
// application payload, and prints whatever comes back.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ardatrace/rudp/internal/client"
	"github.com/ardatrace/rudp/internal/config"
	"github.com/ardatrace/rudp/internal/netio"
	"github.com/ardatrace/rudp/internal/peerengine"
	"github.com/ardatrace/rudp/internal/util"
)

var version = "dev"

var (
	serverAddr string
	configPath string
	debugMode  bool
	logFile    string
)

func main() {
	root := &cobra.Command{
		Use:     "rudp-client",
		Short:   "Connect to a reliable-UDP echo server",
		Version: version,
		RunE:    run,
	}

	root.Flags().StringVarP(&serverAddr, "connect", "a", "127.0.0.1:9500", "server address to connect to")
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	connected := make(chan struct{}, 1)
	sh := client.NewShell(netio.NewSystemClock(), netio.NewRealScheduler(), cfg, client.Hooks{
		Connected: func() {
			pterm.Success.Println("connected")
			select {
			case connected <- struct{}{}:
			default:
			}
		},
		ServerLost: func() {
			util.LogWarning("server lost, exiting")
			stop()
		},
		OnApp: func(sub uint8, data []byte) {
			fmt.Printf("[%d] %s\n", sub, data)
		},
		OnLinkInfo: func(info peerengine.LinkInfo) {
			util.LogDebug("link: srtt=%dms rto=%dms queue=%d", info.SRTT, info.RTO, info.QueueDepth)
		},
	})

	if err := sh.Connect("udp", serverAddr); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer sh.Close()

	pterm.Info.Printfln("rudp-client v%s — connecting to %s", version, serverAddr)

	go func() {
		if err := sh.Run(ctx); err != nil {
			util.LogError("client: %v", err)
		}
	}()

	go readStdinLoop(ctx, sh)

	<-ctx.Done()
	util.LogInfo("client shut down")
	return nil
}

// readStdinLoop forwards each line of stdin as a reliable sub-command 0
// application payload, until ctx is cancelled or stdin closes.
func readStdinLoop(ctx context.Context, sh *client.Shell) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := scanner.Text()
		if err := sh.SendReliable(0, []byte(line)); err != nil {
			util.LogWarning("send failed: %v", err)
		}
	}
}
