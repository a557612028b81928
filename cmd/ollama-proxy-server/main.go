// ollama-proxy-server is the CLI entrypoint: it loads the YAML config
// store, starts the background refresher, wires the dispatcher's
// collaborators, and serves HTTP until interrupted. Graceful shutdown
// and panic recovery follow the teacher's cmd/sayl/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/thibautrey/ollama-proxy-server/internal/accesslog"
	"github.com/thibautrey/ollama-proxy-server/internal/configstore"
	"github.com/thibautrey/ollama-proxy-server/internal/dispatcher"
	"github.com/thibautrey/ollama-proxy-server/internal/forwarder"
	"github.com/thibautrey/ollama-proxy-server/internal/monitor"
	"github.com/thibautrey/ollama-proxy-server/internal/prober"
	"github.com/thibautrey/ollama-proxy-server/internal/queue"
	"github.com/thibautrey/ollama-proxy-server/internal/stats"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\nfatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	var (
		configPath  string
		addr        string
		logPath     string
		withMonitor bool
	)

	flag.StringVar(&configPath, "config", "config.yaml", "Path to YAML configuration file")
	flag.StringVar(&addr, "addr", ":8000", "Listen address")
	flag.StringVar(&logPath, "access-log", "access.log", "Path to the CSV access log")
	flag.BoolVar(&withMonitor, "monitor", false, "Launch the operator monitor TUI alongside the server")
	flag.Parse()

	store := configstore.NewFileStore(configPath)
	refresher := configstore.NewRefresher(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := refresher.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "initial config load failed: %v\n", err)
		os.Exit(1)
	}

	accountant := &queue.Accountant{}
	prb := prober.New()
	fwd := forwarder.New()
	log := accesslog.Open(logPath)
	latency := stats.NewTracker()

	d := dispatcher.New(refresher, accountant, prb, fwd, log, latency)

	server := &http.Server{
		Addr:    addr,
		Handler: d,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		fmt.Printf("ollama-proxy-server listening on %s (config: %s)\n", addr, configPath)
		serveErr <- server.ListenAndServe()
	}()

	if withMonitor {
		m := monitor.New(refresher, accountant, prb, latency)
		p := tea.NewProgram(m)
		go func() {
			if _, err := p.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "monitor exited: %v\n", err)
			}
			sigChan <- syscall.SIGTERM
		}()
	}

	select {
	case sig := <-sigChan:
		fmt.Printf("\nreceived %s, shutting down gracefully...\n", sig)
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "graceful shutdown failed: %v\n", err)
		os.Exit(1)
	}
}
