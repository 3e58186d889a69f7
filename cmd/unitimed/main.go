// Command unitimed runs the unitime sync daemon in the foreground.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/unitime/unitime/internal/config"
	"github.com/unitime/unitime/internal/daemon"
	"github.com/unitime/unitime/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("unitimed:", err.Error())
		os.Exit(1)
	}

	l := logger.NewStandardLogger(log.Default())
	defer l.Close()

	d, err := daemon.New(cfg, l)
	if err != nil {
		fmt.Println("unitimed:", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil {
		fmt.Println("unitimed:", err.Error())
		os.Exit(1)
	}
}
