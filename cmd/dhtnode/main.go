package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/blang/semver/v4"
	"github.com/tos-network/dhtring"
)

var version = semver.MustParse("0.1.0")

func main() {
	daemonCmd := flag.NewFlagSet("daemon", flag.ExitOnError)
	myIP := daemonCmd.String("myIp", "0.0.0.0:9000", "address to listen on")
	numRoutes := daemonCmd.Int("numRoutes", dhtring.DefaultNumRoutes, "routing table capacity")
	cfgFile := daemonCmd.String("cfgFile", dhtring.DefaultCfgFile(dhtring.DefaultDataDir()), "path to write this node's own bootstrap address")
	predFile := daemonCmd.String("predFile", "", "path to a predecessor's bootstrap address; omit to start a new ring")
	cache := daemonCmd.Bool("cache", false, "enable the read-through reply cache")
	debug := daemonCmd.Bool("debug", false, "log every packet sent and received")
	showVersion := daemonCmd.Bool("version", false, "print the version and exit")

	if len(os.Args) < 2 {
		fmt.Println("expected 'daemon' subcommand")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "daemon":
		daemonCmd.Parse(os.Args[2:])

		if *showVersion {
			fmt.Println(version.String())
			return
		}

		cfg := &dhtring.Config{
			ListenAddress: *myIP,
			NumRoutes:     *numRoutes,
			CfgFile:       *cfgFile,
			PredFile:      *predFile,
			Cache:         *cache,
			Debug:         *debug,
		}

		node, err := dhtring.New(cfg)
		if err != nil {
			log.Fatalf("failed to start dht node: %v", err)
		}

		log.Printf("dht node %s listening on %s (range %s)\n", node.Info(), *myIP, node.HashRange())

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		<-c

		log.Println("dht node leaving the ring...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := node.Leave(ctx); err != nil {
			log.Printf("graceful leave failed, closing anyway: %v", err)
			node.Close()
		}
		log.Println("dht node stopped.")
	default:
		fmt.Println("expected 'daemon' subcommand")
		os.Exit(1)
	}
}
