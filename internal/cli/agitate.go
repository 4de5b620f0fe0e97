package cli

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/MRamiBalles/GatoVirtual/server/internal/network"
)

func init() {
	cmd := &cobra.Command{
		Use:   "agitate",
		Short: "Load-test a running server with concurrent WebSocket owners",
		Run:   runAgitate,
	}

	cmd.Flags().String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	cmd.Flags().Int("clients", 50, "Number of concurrent clients, each with its own owner")
	cmd.Flags().Duration("interval", 100*time.Millisecond, "Frame interval per client")
	cmd.Flags().Duration("duration", 60*time.Second, "Test duration")

	RootCmd.AddCommand(cmd)
}

// agitateConfig drives one load run.
type agitateConfig struct {
	ServerURL     string
	NumClients    int
	FrameInterval time.Duration
	TestDuration  time.Duration
}

// loadStats tracks performance metrics.
type loadStats struct {
	FramesSent     int64
	FramesReceived int64
	Errors         int64
	Latencies      []time.Duration
	mu             sync.Mutex
}

var chatLines = []string{
	"Are you hungry?",
	"Who's a good cat?",
	"Do you want to play?",
	"What did you dream about?",
	"Meow?",
}

func runAgitate(cmd *cobra.Command, args []string) {
	cfg := agitateConfig{}
	cfg.ServerURL, _ = cmd.Flags().GetString("url")
	cfg.NumClients, _ = cmd.Flags().GetInt("clients")
	cfg.FrameInterval, _ = cmd.Flags().GetDuration("interval")
	cfg.TestDuration, _ = cmd.Flags().GetDuration("duration")

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server: %s\nClients: %d\nInterval: %v\nDuration: %v\n\n",
		cfg.ServerURL, cfg.NumClients, cfg.FrameInterval, cfg.TestDuration)

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.TestDuration)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	stats := runLoad(ctx, cfg, out)
	printLoadResults(out, stats, cfg)
}

func runLoad(ctx context.Context, cfg agitateConfig, out io.Writer) *loadStats {
	stats := &loadStats{
		Latencies: make([]time.Duration, 0, 10000),
	}

	var wg sync.WaitGroup
	for i := 0; i < cfg.NumClients; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			runLoadClient(ctx, cfg, stats, rand.New(rand.NewSource(seed)))
		}(time.Now().UnixNano() + int64(i))

		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}
	fmt.Fprintf(out, "All %d clients started\n", cfg.NumClients)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Fprintf(out, "Progress: sent=%d recv=%d errors=%d\n",
					atomic.LoadInt64(&stats.FramesSent),
					atomic.LoadInt64(&stats.FramesReceived),
					atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	wg.Wait()
	return stats
}

func runLoadClient(ctx context.Context, cfg agitateConfig, stats *loadStats, rng *rand.Rand) {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	q := u.Query()
	q.Set("owner", "load-"+uuid.NewString())
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			atomic.AddInt64(&stats.FramesReceived, 1)
		}
	}()

	ticker := time.NewTicker(cfg.FrameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			if err := conn.WriteJSON(randomFrame(rng)); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}
			latency := time.Since(start)
			atomic.AddInt64(&stats.FramesSent, 1)

			stats.mu.Lock()
			stats.Latencies = append(stats.Latencies, latency)
			stats.mu.Unlock()
		}
	}
}

// randomFrame picks an owner frame. Chat is rarer since it is rate limited.
func randomFrame(rng *rand.Rand) network.OwnerAction {
	switch n := rng.Intn(10); {
	case n < 3:
		return network.OwnerAction{Type: network.FrameFeed}
	case n < 6:
		return network.OwnerAction{Type: network.FramePlay}
	case n < 8:
		return network.OwnerAction{Type: network.FrameSleep}
	case n < 9:
		return network.OwnerAction{Type: network.FrameSave}
	default:
		return network.OwnerAction{Type: network.FrameChat, Text: chatLines[rng.Intn(len(chatLines))]}
	}
}

// latencySummary returns min, average and max of the recorded write latencies.
func latencySummary(latencies []time.Duration) (lo, avg, hi time.Duration) {
	if len(latencies) == 0 {
		return 0, 0, 0
	}
	lo, hi = latencies[0], latencies[0]
	var total time.Duration
	for _, l := range latencies {
		total += l
		lo = min(lo, l)
		hi = max(hi, l)
	}
	return lo, total / time.Duration(len(latencies)), hi
}

func printLoadResults(out io.Writer, stats *loadStats, cfg agitateConfig) {
	sent := atomic.LoadInt64(&stats.FramesSent)
	recv := atomic.LoadInt64(&stats.FramesReceived)
	errs := atomic.LoadInt64(&stats.Errors)

	stats.mu.Lock()
	lo, avg, hi := latencySummary(stats.Latencies)
	stats.mu.Unlock()

	results := map[string]interface{}{
		"frames_sent":        sent,
		"frames_received":    recv,
		"errors":             errs,
		"error_rate":         float64(errs) / float64(sent+1),
		"throughput_per_sec": float64(sent) / cfg.TestDuration.Seconds(),
		"latency": map[string]string{
			"min": lo.String(),
			"avg": avg.String(),
			"max": hi.String(),
		},
		"config": map[string]interface{}{
			"clients":  cfg.NumClients,
			"interval": cfg.FrameInterval.String(),
			"duration": cfg.TestDuration.String(),
		},
	}
	printJSON(out, results)
}
