package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/barnybug/gobeacon/config"
	"github.com/barnybug/gobeacon/pubsub"
	"github.com/barnybug/gobeacon/services"
	"github.com/barnybug/gobeacon/services/publisher"
	"github.com/barnybug/gobeacon/services/tracker"
)

var (
	configFile = flag.String("config", "", "configuration file (default $XDG_CONFIG_HOME/gobeacon/gobeacon.yml)")
	debug      = flag.Bool("debug", false, "debug logging")
)

func registerServices() {
	services.Register(&tracker.Service{})
	services.Register(&publisher.Service{})
}

func usage() {
	fmt.Println("Usage: gobeacon [-config FILE] [-debug] COMMAND ...")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("   run     service...          Run services (tracker, publisher)")
	fmt.Println("   decode  addr rssi hex [formats=a,b]")
	fmt.Println("                                Decode raw advertising data")
	fmt.Println("   listen  [prefix]             Print events from the broker")
	fmt.Println("   config                       Print an example configuration")
	fmt.Println()
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	services.SetupLogging(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, ps := flag.Arg(0), flag.Args()[1:]
	switch command {
	default:
		usage()
		os.Exit(1)
	case "run":
		if len(ps) == 0 {
			usage()
			os.Exit(1)
		}
		run(ctx, ps)
	case "decode":
		if err := decode(os.Stdout, ps); err != nil {
			fatalf("error: %s\n", err)
		}
	case "listen":
		listen(ctx, ps)
	case "config":
		fmt.Print(config.ExampleYaml)
	}
}

func run(ctx context.Context, names []string) {
	registerServices()
	if err := services.SetupConfig(*configFile); err != nil {
		fatalf("error: %s\n", err)
	}
	if err := services.SetupBroker(names[0]); err != nil {
		fatalf("error: %s\n", err)
	}
	defer services.Shutdown()
	if err := services.Launch(ctx, names); err != nil {
		slog.Error("Exiting", "error", err)
		services.Shutdown()
		os.Exit(1)
	}
}

func listen(ctx context.Context, ps []string) {
	// config is optional here, GOBEACON_MQTT suffices
	if err := services.SetupConfig(*configFile); err != nil {
		slog.Debug("No config", "error", err)
	}
	if err := services.SetupBroker("listen"); err != nil {
		fatalf("error: %s\n", err)
	}
	defer services.Shutdown()

	var topic pubsub.Topic = pubsub.All()
	if len(ps) > 0 {
		topic = pubsub.Prefix(strings.TrimSuffix(ps[0], "/"))
	}
	printEvents(ctx, os.Stdout, services.Subscriber, topic)
}

// printEvents writes each matching event until ctx ends or the
// subscription closes.
func printEvents(ctx context.Context, w io.Writer, sub pubsub.Subscriber, topic pubsub.Topic) {
	ch := sub.Subscribe(topic)
	defer sub.Close(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "%-20s %s\n", ev.Topic, ev)
		}
	}
}
