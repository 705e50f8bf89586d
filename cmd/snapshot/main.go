package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/stemsi/exstem-agent/internal/config"
	"github.com/stemsi/exstem-agent/internal/logger"
	"github.com/stemsi/exstem-agent/internal/store"
	"golang.org/x/term"
)

// snapshot inspects or clears a sealed attempt snapshot. Proctors use
// it after a kiosk incident to confirm what would resume, or to wipe a
// stale attempt before handing the machine to the next candidate.
//
// Usage:
//
//	snapshot -test <test_id> [-clear] [-json]
func main() {
	testID := flag.String("test", "", "test ID of the snapshot")
	clear := flag.Bool("clear", false, "delete the snapshot instead of printing it")
	asJSON := flag.Bool("json", false, "print the raw snapshot JSON")
	flag.Parse()

	if *testID == "" {
		fmt.Fprintln(os.Stderr, "Error: -test is required")
		flag.Usage()
		os.Exit(1)
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	// The secret normally comes from the environment; prompt when the
	// proctor runs this on a machine without the agent's env file.
	secret := cfg.SnapshotSecret
	if secret == "" {
		fmt.Print("Enter snapshot secret: ")
		byteSecret, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Println("\nError reading secret")
			os.Exit(1)
		}
		fmt.Println()
		secret = string(byteSecret)
	}
	if secret == "" {
		fmt.Fprintln(os.Stderr, "Error: snapshot secret is required")
		os.Exit(1)
	}

	// ─── Open Snapshot Store ───────────────────────────────────────────
	st, err := store.Open(cfg.StorePath, secret, log)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.StorePath).Msg("Failed to open snapshot store")
	}
	defer st.Close()

	if *clear {
		if err := st.Clear(*testID); err != nil {
			log.Fatal().Err(err).Msg("Failed to clear snapshot")
		}
		if err := st.SetExamActive(false); err != nil {
			log.Fatal().Err(err).Msg("Failed to reset exam flag")
		}
		fmt.Printf("Snapshot for test '%s' cleared\n", *testID)
		return
	}

	snap, err := st.Load(*testID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load snapshot")
	}
	if snap == nil {
		fmt.Printf("No snapshot for test '%s'\n", *testID)
		return
	}

	if *asJSON {
		out, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to encode snapshot")
		}
		fmt.Println(string(out))
		return
	}

	active, err := st.ExamActive()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read exam flag")
	}

	deadline := time.UnixMilli(snap.DeadlineMillis)
	savedAt := time.UnixMilli(snap.SavedAtMillis)

	fmt.Printf("Test:         %s\n", *testID)
	fmt.Printf("Exam active:  %t\n", active)
	fmt.Printf("Saved at:     %s\n", savedAt.Format(time.RFC3339))
	fmt.Printf("Deadline:     %s\n", deadline.Format(time.RFC3339))
	fmt.Printf("Answered:     %d\n", len(snap.Answers))
	fmt.Printf("Visited:      %d\n", len(snap.Visited))
	fmt.Printf("For review:   %d\n", len(snap.MarkedForReview))
	fmt.Printf("Violations:   %d\n", snap.ViolationCount)
	fmt.Printf("Current idx:  %d\n", snap.CurrentIndex)
}
