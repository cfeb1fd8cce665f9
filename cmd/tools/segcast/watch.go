package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chaoscast/chaoscast/internal/config"
	"github.com/chaoscast/chaoscast/internal/logging"
	"github.com/chaoscast/chaoscast/internal/queue"
)

// watchCommand subscribes to every lifecycle event subject and prints one
// line per event until interrupted
func watchCommand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	project := fs.String("project", "", "Only print events of this project")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		return err
	}
	logging.SetGlobal(logger)

	q, err := queue.NewQueue(cfg.Queue)
	if err != nil {
		return err
	}
	defer q.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return watchEvents(ctx, q, cfg.Queue.Subject, *project, out)
}

// watchEvents prints events from sub until ctx is done
func watchEvents(ctx context.Context, sub queue.Subscriber, prefix, project string, out io.Writer) error {
	emitter := queue.NewEmitter(nil, prefix, nil)

	var mu sync.Mutex
	handle := func(data []byte) error {
		ev, err := queue.DecodeEvent(data)
		if err != nil {
			logging.Warn("Skipping undecodable event", "error", err.Error())
			return nil
		}
		if project != "" && ev.ProjectID != project {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		_, err = fmt.Fprintf(out, "%s %-22s %s %s\n",
			ev.Time.Format("2006-01-02T15:04:05Z07:00"), ev.Type, ev.ProjectID, ev.Status)
		return err
	}

	for _, t := range queue.EventTypes {
		subject := emitter.Subject(t)
		if err := sub.Subscribe(subject, handle); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		defer sub.Unsubscribe(subject)
	}

	<-ctx.Done()
	return nil
}
