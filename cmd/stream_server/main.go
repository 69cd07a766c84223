// Command stream_server binds a TCP port and serves the board's
// audio/video capture engines to remote clients.
//
// Usage:
//
//	stream_server [-config board.yaml] <port>
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/chromeos/stream-server/regs"
	"github.com/chromeos/stream-server/server"
)

func main() {
	configPath := flag.String("config", "", "optional YAML file overriding the board's register addresses")
	devMem := flag.String("dev-mem", "", "path to the dump-region device file (default: board config's dev_mem_path)")
	logDir := flag.String("log-dir", "/var/log/stream_server", "directory for per-session log files")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: stream_server [-config board.yaml] <port>")
		os.Exit(2)
	}
	port := flag.Arg(0)

	addrs := regs.DefaultBoardAddresses
	if *configPath != "" {
		loaded, err := regs.LoadBoardAddresses(*configPath)
		if err != nil {
			log.Fatalf("stream_server: %v", err)
		}
		addrs = loaded
	}
	if *devMem != "" {
		addrs.DevMemPath = *devMem
	}

	hw, err := regs.Open(addrs)
	if err != nil {
		log.Fatalf("stream_server: open hardware view: %v", err)
	}

	ln, err := server.Listen("0.0.0.0:"+port, server.Config{
		HW:     hw,
		DevMem: addrs.DevMemPath,
		LogDir: *logDir,
	})
	if err != nil {
		hw.Close()
		log.Fatalf("stream_server: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		log.Print("stream_server: shutting down")
		ln.Close()
		hw.Close()
	}()

	log.Printf("stream_server: listening on port %s", port)
	if err := ln.Serve(); err != nil {
		log.Printf("stream_server: accept loop stopped: %v", err)
	}
}
