package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mentora/internal/config"
	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/queue"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show lifecycle events (interviews created, completed, deleted; study resets)",
	RunE: func(cmd *cobra.Command, args []string) error {
		follow, _ := cmd.Flags().GetBool("follow")
		if follow {
			return followEvents(cmd)
		}

		q := url.Values{}
		if typ, _ := cmd.Flags().GetString("type"); typ != "" {
			q.Set("type", typ)
		}
		if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
			q.Set("since", time.Now().Add(-since).UTC().Format(time.RFC3339))
		}
		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
			q.Set("limit", strconv.Itoa(limit))
		}

		path := "/v1/events"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		var resp struct {
			Events []*domain.LifecycleEvent `json:"events"`
		}
		if err := newClient(cmd).do(cmd.Context(), http.MethodGet, path, nil, &resp); err != nil {
			return err
		}
		for _, ev := range resp.Events {
			printEvent(cmd.OutOrStdout(), ev)
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().String("type", "", "Only events of this type, e.g. interview.completed")
	eventsCmd.Flags().Duration("since", 0, "Only events newer than this, e.g. 24h")
	eventsCmd.Flags().Int("limit", 50, "Maximum number of events")
	eventsCmd.Flags().BoolP("follow", "f", false, "Stream events from the AMQP queue until interrupted")
}

// followEvents consumes the event queue. Every event it prints is taken off
// the queue.
func followEvents(cmd *cobra.Command) error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Events.AMQPURL == "" {
		return fmt.Errorf("no event queue configured (set MENTORA_AMQP_URL)")
	}

	conn, err := queue.NewConnection(cfg.Events.AMQPURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	consumer := queue.NewConsumer(conn, func(_ context.Context, ev *domain.LifecycleEvent) error {
		printEvent(out, ev)
		return nil
	}, queue.DefaultConsumerConfig())

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	consumer.Stop()
	return nil
}

func printEvent(w io.Writer, ev *domain.LifecycleEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintln(w, string(data))
}
