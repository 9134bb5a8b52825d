// Command peaks prints an athlete's best efforts for one peak type, ranked
// descending by value, converted to display units.
//
// Usage:
//
//	peaks -athlete 42 -type ride_watts_300 [-limit 10]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/peakline/server/pkg/bootstrap"
	"github.com/peakline/server/pkg/domain/peaks"
)

func main() {
	athleteID := flag.Int64("athlete", 0, "athlete id (required)")
	peakType := flag.String("type", "", "peak type, e.g. ride_watts_300 (required)")
	limit := flag.Int("limit", 10, "maximum rows")
	flag.Parse()

	if *athleteID == 0 || *peakType == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc, err := bootstrap.NewService(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "service init failed: %v\n", err)
		os.Exit(1)
	}

	found, err := svc.DB.QueryPeaksByType(ctx, *athleteID, *peakType, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
		os.Exit(1)
	}
	if len(found) == 0 {
		fmt.Printf("no peaks of type %s for athlete %d\n", *peakType, *athleteID)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tVALUE\tACTIVITY\tDATE\tNAME")
	for i, p := range found {
		fmt.Fprintf(w, "%d\t%.2f\t%d\t%s\t%s\n",
			i+1, peaks.DisplayValue(p.Metric, p.Value), p.ActivityID, p.StartDateLocal, p.Name)
	}
	w.Flush()
}
