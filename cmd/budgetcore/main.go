// Command budgetcore loads a user's budget document through the sync
// engine and prints a summary of the current month: dashboards, schedule
// groups, expanded occurrences, totals, and balances.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"budgetcore/internal/cache"
	"budgetcore/internal/core"
	"budgetcore/internal/remote"
	syncengine "budgetcore/internal/sync"
	"budgetcore/pkg/domain"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("budgetcore", flag.ContinueOnError)
	fs.SetOutput(stderr)
	userFlag := fs.String("user", "", "user id (defaults to the persisted guest id)")
	monthFlag := fs.String("month", "", "month to summarize as YYYY-MM (defaults to the current month)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	userID := *userFlag
	if userID == "" {
		var err error
		userID, err = guestID()
		if err != nil {
			fmt.Fprintf(stderr, "budgetcore: %v\n", err)
			return 1
		}
	}

	month := domain.MonthOf(time.Now())
	if *monthFlag != "" {
		parsed, err := parseMonth(*monthFlag)
		if err != nil {
			fmt.Fprintf(stderr, "budgetcore: %v\n", err)
			return 2
		}
		month = parsed
	}

	ctx := context.Background()
	remoteStore, err := remote.Open(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "budgetcore: open remote store: %v\n", err)
		return 1
	}
	snapshotCache, err := cache.Open()
	if err != nil {
		fmt.Fprintf(stderr, "budgetcore: open cache: %v\n", err)
		return 1
	}

	store := core.NewStore()
	engine := syncengine.NewEngine(store, remoteStore, snapshotCache)
	defer engine.Close()
	service := core.NewService(store)
	service.OnMutate(func() {
		if err := engine.Save(ctx); err != nil {
			fmt.Fprintf(stderr, "budgetcore: save: %v\n", err)
		}
	})

	if err := engine.Load(ctx, userID); err != nil {
		fmt.Fprintf(stderr, "budgetcore: load: %v\n", err)
		return 1
	}

	summarize(stdout, service, month)
	fmt.Fprintf(stdout, "\nsync: %s (remote=%s cache=%s user=%s)\n",
		engine.Status(), remoteStore.Driver(), snapshotCache.Driver(), userID)
	return 0
}

func summarize(w io.Writer, service *core.Service, month domain.Month) {
	current := service.Store().CurrentDashboardID()
	for _, d := range service.ListDashboards() {
		marker := " "
		if d.ID == current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s (%s)\n", marker, d.Name, d.ID)
	}

	fmt.Fprintf(w, "\n%s\n", month)
	for _, item := range service.ItemsForMonth(month) {
		fmt.Fprintf(w, "  %s  %10s  %s\n", item.Date, item.Amount.StringFixed(2), item.Title)
	}

	totals := service.MonthlyTotals(month)
	fmt.Fprintf(w, "  income %s  expenses %s  net %s\n",
		totals.Income.StringFixed(2), totals.Expenses.StringFixed(2), totals.Net.StringFixed(2))
	fmt.Fprintf(w, "  actual balance    %s\n", service.ActualBalance(month.Last()).Net.StringFixed(2))
	fmt.Fprintf(w, "  projected balance %s\n", service.ProjectedBalance(month).StringFixed(2))
}

// guestID returns the stable anonymous identity for this machine,
// minting and persisting one on first use.
//
//	BUDGETCORE_GUEST_ID_FILE: override the id file location
func guestID() (string, error) {
	path := os.Getenv("BUDGETCORE_GUEST_ID_FILE")
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("resolve config dir: %w", err)
		}
		path = filepath.Join(dir, "budgetcore", "guest-id")
	}
	if data, err := os.ReadFile(path); err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
	}
	id := "guest-" + uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create guest id dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persist guest id: %w", err)
	}
	return id, nil
}

func parseMonth(s string) (domain.Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return domain.Month{}, fmt.Errorf("invalid month %q, want YYYY-MM", s)
	}
	return domain.Month{Year: t.Year(), Month: t.Month()}, nil
}
