// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

package collectors_test

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/databendcloud/databend-client/driver"
	"github.com/databendcloud/databend-client/driver/prometheus/collectors"
)

func formatHTTPAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "80"
	}
	return net.JoinHostPort(host, port)
}

// Example demonstrates exposing databend client metrics via prometheus.
func Example() {
	const (
		envDSN  = "TEST_DATABEND_DSN"
		envHTTP = "TEST_DATABEND_HTTP"
	)

	dsn := os.Getenv(envDSN)
	addr := os.Getenv(envHTTP)

	// exit if dsn or http address is missing.
	if dsn == "" || addr == "" {
		return
	}

	conn, err := driver.NewConnection(dsn)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	// register collector for the aggregated driver metrics.
	if err := prometheus.Register(collectors.NewDriverCollector()); err != nil {
		log.Fatal(err)
	}

	// register collector for the metrics of this connection.
	if err := prometheus.Register(collectors.NewConnectionCollector(conn, conn.Info().Database)); err != nil {
		log.Fatal(err)
	}

	wg := sync.WaitGroup{}
	wg.Add(1)
	done := make(chan struct{})

	// run some queries...
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				if _, err := conn.Version(context.Background()); err != nil {
					log.Fatal(err)
				}
			}
		}
	}()

	// register prometheus HTTP handler and start HTTP server.
	http.Handle("/metrics", promhttp.Handler())
	go http.ListenAndServe(addr, nil)

	log.Printf("access the metrics at http://%s/metrics", formatHTTPAddr(addr))

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt)
	<-sigint

	close(done)
	wg.Wait()

	// output:
}
