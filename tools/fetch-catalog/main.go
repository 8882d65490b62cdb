package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/john/emoterain/internal/catalog"
)

func main() {
	baseURL := flag.String("url", catalog.DefaultServiceURL, "catalog service base URL")
	timeout := flag.Duration("timeout", 10*time.Second, "per-channel request timeout")
	flag.Usage = func() {
		fmt.Println("Usage: fetch-catalog [-url base] <channel1> [channel2] ...")
		fmt.Println("\nExample:")
		fmt.Println("  fetch-catalog moonmoon forsen")
	}
	flag.Parse()

	channels := flag.Args()
	if len(channels) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	source := catalog.NewHTTPSource(*baseURL, *timeout)
	fmt.Printf("Fetching %d catalog(s) from %s...\n\n", len(channels), *baseURL)

	failed := 0
	for _, channel := range channels {
		records, err := source.Fetch(context.Background(), channel)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			fmt.Printf("✗ %s: no catalog registered\n\n", channel)
			failed++
			continue
		case err != nil:
			fmt.Printf("✗ %s: %v\n\n", channel, err)
			failed++
			continue
		}

		slices.SortFunc(records, func(a, b catalog.Record) int {
			return cmp.Compare(a.Code, b.Code)
		})

		fmt.Printf("✓ %s (%d emotes):\n", catalog.NormalizeChannel(channel), len(records))
		fmt.Println("---")
		for _, r := range records {
			fmt.Printf("%s: %s\n", r.Code, r.ID)
		}
		fmt.Println()
	}

	if failed > 0 {
		os.Exit(1)
	}
}
