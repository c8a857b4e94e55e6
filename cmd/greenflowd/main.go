package main

import (
	"flag"
	"os"

	"github.com/mwarner/greenflow/internal/server"
)

func main() {
	listenAddr := flag.String("listen-addr", "", "Address to listen on (e.g. :8080)")
	flag.Parse()

	d := server.NewDaemon(server.Opts{
		ListenAddr: *listenAddr,
	})
	if err := d.Start(); err != nil {
		os.Exit(1)
	}
}
