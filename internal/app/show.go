package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"quantscraper/internal/storage"
)

// Show prints recent cycle reports.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show cycles")
	}
	if closeStore != nil {
		defer closeStore()
	}

	cycles, err := store.ListRecentCycles(ctx, opts.Exchange, opts.Limit)
	if err != nil {
		return err
	}
	if len(cycles) == 0 {
		fmt.Fprintln(os.Stdout, "no cycles found")
		return nil
	}
	writeCycles(os.Stdout, cycles)

	for _, status := range []string{storage.StatusComplete, storage.StatusFailed, storage.StatusSkipped} {
		n, err := store.CountCycles(ctx, opts.Exchange, status)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s: %d  ", status, n)
	}
	fmt.Fprintln(os.Stdout)
	return nil
}

func writeCycles(w io.Writer, cycles []storage.CycleRecord) {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Started (UTC)\tExchange\tStatus\tDuration\tSymbols\tRows\tDropped\tFailed\tError")

	for _, c := range cycles {
		errMsg := ""
		if c.Error != nil {
			errMsg = sanitizeInline(*c.Error)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			c.StartedAt.UTC().Format(time.RFC3339),
			c.Exchange,
			c.Status,
			c.Duration().Round(time.Millisecond),
			c.Symbols,
			c.Rows,
			c.Dropped,
			strings.Join(c.FailedArtifacts, ","),
			errMsg,
		)
	}

	writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
