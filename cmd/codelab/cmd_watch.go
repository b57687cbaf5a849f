package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/felixgeelhaar/codelab/internal/config"
	"github.com/felixgeelhaar/codelab/internal/domain"
	"github.com/felixgeelhaar/codelab/internal/events"
)

// cmdWatch streams events for one problem, or every problem with --all.
// With --amqp events are read from the RabbitMQ queue instead of the daemon.
func cmdWatch(args []string) error {
	var (
		useAMQP bool
		all     bool
		rest    []string
	)
	for _, a := range args {
		switch a {
		case "--amqp":
			useAMQP = true
		case "--all":
			all = true
		default:
			rest = append(rest, a)
		}
	}

	var key domain.ProblemKey
	if !all {
		k, _, err := resolveKey(rest, 0)
		if err != nil {
			return err
		}
		key = k
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if useAMQP {
		return watchAMQP(ctx, key)
	}
	return watchSSE(ctx, key)
}

func watchSSE(ctx context.Context, key domain.ProblemKey) error {
	path := "/v1/events"
	if key != (domain.ProblemKey{}) {
		path = problemPath(key) + "/events"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, daemonAddr()+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// No client timeout: the stream stays open until interrupted
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("daemon not reachable (run 'codelab start'): %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("watch: %s", resp.Status)
	}

	fmt.Fprintf(os.Stderr, "Watching %s (Ctrl+C to stop)\n", watchLabel(key))
	err = readSSE(resp.Body, func(env events.Envelope) {
		printEnvelope(os.Stdout, env)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readSSE decodes the data lines of an event stream. Comments, ids and
// event names are skipped since the envelope carries all of them.
func readSSE(r io.Reader, fn func(events.Envelope)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				var env events.Envelope
				if err := json.Unmarshal([]byte(data.String()), &env); err == nil {
					fn(env)
				}
				data.Reset()
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func watchAMQP(ctx context.Context, key domain.ProblemKey) error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Events.AMQPURL == "" {
		return fmt.Errorf("events.amqp_url is not configured")
	}

	conn, err := events.NewConnection(cfg.Events.AMQPURL, cfg.Events.Queue)
	if err != nil {
		return err
	}
	defer conn.Close()

	consumer := events.NewConsumer(conn, func(_ context.Context, env events.Envelope) error {
		if env.Matches(key) {
			printEnvelope(os.Stdout, env)
		}
		return nil
	})
	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumer.Stop()

	fmt.Fprintf(os.Stderr, "Watching %s on queue %s (Ctrl+C to stop)\n", watchLabel(key), conn.Queue())
	<-ctx.Done()
	return nil
}

func watchLabel(key domain.ProblemKey) string {
	if key == (domain.ProblemKey{}) {
		return "all problems"
	}
	return key.String()
}

// printEnvelope prints one event line with a short payload digest
func printEnvelope(w io.Writer, env events.Envelope) {
	var payload map[string]any
	_ = json.Unmarshal(env.Payload, &payload)

	var details []string
	for _, field := range []string{"from", "to", "language", "passed", "total", "status", "remaining_seconds", "error"} {
		if v, ok := payload[field]; ok {
			details = append(details, fmt.Sprintf("%s=%v", field, v))
		}
	}

	fmt.Fprintf(w, "%s  %-16s %s  %s\n",
		env.OccurredAt.Local().Format("15:04:05"),
		env.Type,
		env.Problem,
		strings.Join(details, " "))
}
