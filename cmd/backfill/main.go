// Command backfill kicks off a history backfill for one athlete by publishing
// a BACKFILL_ATHLETE job onto the planner topic.
//
// Usage:
//
//	backfill -user u_123 -athlete 42 [-start 2015-01-01T00:00:00Z] [-dry-run]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	shared "github.com/peakline/server/pkg"
	"github.com/peakline/server/pkg/bootstrap"
	infrapubsub "github.com/peakline/server/pkg/infrastructure/pubsub"
	"github.com/peakline/server/pkg/types"
)

func main() {
	userID := flag.String("user", "", "user id owning the credential (required)")
	athleteID := flag.Int64("athlete", 0, "athlete id to backfill (required)")
	start := flag.String("start", "", "history start, RFC 3339 (default: provider launch)")
	dryRun := flag.Bool("dry-run", false, "print the job without publishing")
	flag.Parse()

	if *userID == "" || *athleteID == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *start != "" {
		if _, err := time.Parse(time.RFC3339, *start); err != nil {
			fmt.Fprintf(os.Stderr, "invalid -start %q: %v\n", *start, err)
			os.Exit(2)
		}
	}

	request := map[string]interface{}{
		"job":        types.JobBackfillAthlete,
		"user_id":    *userID,
		"athlete_id": *athleteID,
	}
	if *start != "" {
		request["start"] = *start
	}

	if *dryRun {
		fmt.Printf("would publish to %s: %v\n", shared.TopicBackfill, request)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc, err := bootstrap.NewService(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "service init failed: %v\n", err)
		os.Exit(1)
	}

	e, err := infrapubsub.NewCloudEvent(infrapubsub.EventSource, infrapubsub.EventTypeBackfillRequested, request)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create event: %v\n", err)
		os.Exit(1)
	}

	msgID, err := svc.Pub.PublishCloudEvent(ctx, shared.TopicBackfill, e)
	if err != nil {
		fmt.Fprintf(os.Stderr, "publish failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("backfill requested for athlete %d (message %s)\n", *athleteID, msgID)
}
