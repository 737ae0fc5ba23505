// emberd is a thin example binary showing how to wire ember's pieces
// together: a host table with one virtual host serving static files, and
// an acceptor listening on a configurable address. It is not a supported
// distribution surface, only a wiring demonstration (SPEC_FULL.md §1).
package main

import (
	"flag"
	"log"
	"time"

	"github.com/wattlabs/ember/examples/staticfile"
	"github.com/wattlabs/ember/pkg/ember"
	"github.com/wattlabs/ember/pkg/ember/server"
)

func main() {
	addr := flag.String("addr", ":8080", "address to listen on")
	root := flag.String("root", ".", "directory to serve")
	flag.Parse()

	vhost := ember.NewVirtualHost("")
	files := staticfile.New(*root)
	vhost.AddContext("/", ember.MethodGET, files.ServeHTTP)

	hosts := ember.NewHostTable()
	hosts.Register(vhost)

	cfg := server.DefaultConfig()
	cfg.Addr = *addr
	cfg.Hosts = hosts
	cfg.ReadTimeout = 30 * time.Second
	cfg.MaxKeepAliveRequests = 1000

	srv := server.New(cfg)
	log.Printf("emberd listening on %s, serving %s", *addr, *root)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
