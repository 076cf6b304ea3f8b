package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide peer/datagram counter, shared by every
// server demux and client shell in the process.
var Stats = &stats{}

type stats struct {
	PeersCreated atomic.Int64 // cumulative peers constructed since process start
	PeersDropped atomic.Int64 // cumulative peers torn down since process start
	BytesSent    atomic.Int64 // cumulative bytes written to the endpoint
	BytesRecv    atomic.Int64 // cumulative bytes read from the endpoint
	Retransmits  atomic.Int64 // cumulative reliable packets retransmitted
}

func (s *stats) AddPeer()       { s.PeersCreated.Add(1) }
func (s *stats) RemovePeer()    { s.PeersDropped.Add(1) }
func (s *stats) AddSent(n int)  { s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int)  { s.BytesRecv.Add(int64(n)) }
func (s *stats) AddRetransmit() { s.Retransmits.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that checks transport
// statistics every 10 seconds and logs them when peers came or went,
// a retransmit happened, or either direction exceeded 10 B/s. It stops
// when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevSent, prevRecv, prevCreated, prevDropped, prevRetrans int64
		for {
			select {
			case <-ticker.C:
				created := Stats.PeersCreated.Load()
				dropped := Stats.PeersDropped.Load()
				sent := Stats.BytesSent.Load()
				recv := Stats.BytesRecv.Load()
				retrans := Stats.Retransmits.Load()

				inS := float64(recv-prevRecv) / 10.0
				outS := float64(sent-prevSent) / 10.0
				newPeers := created - prevCreated
				lostPeers := dropped - prevDropped
				newRetrans := retrans - prevRetrans

				if newPeers > 0 || lostPeers > 0 || inS > 10 || outS > 10 || newRetrans > 0 {
					pterm.DefaultLogger.Info(formatStats(inS, outS, newPeers, lostPeers, newRetrans))
				}

				prevSent = sent
				prevRecv = recv
				prevCreated = created
				prevDropped = dropped
				prevRetrans = retrans

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(inS, outS float64, newPeers, lostPeers, retrans int64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Peers: %2d↑ %2d↓ | Retransmits: %d",
		formatBytes(inS),
		formatBytes(outS),
		newPeers,
		lostPeers,
		retrans,
	)
}
