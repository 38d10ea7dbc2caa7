// Package main probes the local server for container health checks. By
// default it checks liveness; -ready also requires storage to answer.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/config"
)

const probeTimeout = 8 * time.Second

func main() {
	ready := flag.Bool("ready", false, "probe /readyz instead of /healthz")
	flag.Parse()

	port := os.Getenv(config.EnvPort)
	if port == "" {
		port = config.DefaultPort
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	if err := probe(ctx, http.DefaultClient, probeURL(port, *ready)); err != nil {
		fmt.Fprintln(os.Stderr, "healthcheck:", err)
		os.Exit(1)
	}
}

func probeURL(port string, ready bool) string {
	path := "/healthz"
	if ready {
		path = "/readyz"
	}
	return "http://localhost:" + port + path
}

// probe succeeds only on a 200 response.
func probe(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}
	return nil
}
