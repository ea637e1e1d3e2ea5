// Package main provides an operator CLI for the tag store.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/klangbox/klangbox/internal/app/association"
	"github.com/klangbox/klangbox/internal/domain/tag"
	"github.com/klangbox/klangbox/internal/infra/logger"
	"github.com/klangbox/klangbox/internal/infra/store"
)

var (
	app    = kingpin.New("tagctl", "Inspect and manage NFC tag associations")
	dbPath = app.Flag("db", "Path to the sqlite database").Default("data/klangbox.db").String()

	listCmd = app.Command("list", "List all known tags")

	showCmd = app.Command("show", "Show one tag")
	showUID = showCmd.Arg("uid", "Tag UID").Required().String()

	dissociateCmd = app.Command("dissociate", "Clear a tag's playlist binding")
	dissociateUID = dissociateCmd.Arg("uid", "Tag UID").Required().String()
)

func main() {
	_ = godotenv.Load()
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Quiet logger; this is an interactive tool.
	if err := logger.Init(logger.Config{Output: "stderr", Level: "warn"}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch command {
	case listCmd.FullCommand():
		err = runList(ctx, st)
	case showCmd.FullCommand():
		err = runShow(ctx, st, *showUID)
	case dissociateCmd.FullCommand():
		err = runDissociate(ctx, st, *dissociateUID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runList(ctx context.Context, st *store.Store) error {
	tags, err := st.ListTags(ctx)
	if err != nil {
		return err
	}
	if len(tags) == 0 {
		fmt.Println("no tags known")
		return nil
	}
	for _, t := range tags {
		printTag(t)
	}
	return nil
}

func runShow(ctx context.Context, st *store.Store, uid string) error {
	id, err := tag.Parse(uid)
	if err != nil {
		return err
	}
	t, err := st.GetTag(ctx, id)
	if err != nil {
		return err
	}
	printTag(t)
	return nil
}

func runDissociate(ctx context.Context, st *store.Store, uid string) error {
	id, err := tag.Parse(uid)
	if err != nil {
		return err
	}

	svc := association.NewService(st, st)
	cleared, err := svc.DissociateTag(ctx, id)
	if err != nil {
		return err
	}
	if !cleared {
		fmt.Printf("tag %s has no playlist binding\n", id)
		return nil
	}
	fmt.Printf("tag %s dissociated\n", id)
	return nil
}

func printTag(t *tag.Tag) {
	playlist := t.AssociatedPlaylistID
	if playlist == "" {
		playlist = "-"
	}
	lastSeen := "never"
	if t.LastDetectedAt != nil {
		lastSeen = t.LastDetectedAt.Format(time.RFC3339)
	}
	fmt.Printf("%s  playlist=%s  detections=%d  last_seen=%s\n",
		t.Identifier, playlist, t.DetectionCount, lastSeen)
}
