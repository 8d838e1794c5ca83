package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/copydesk/copydesk/internal/backend"
	"github.com/copydesk/copydesk/internal/content"
	"github.com/copydesk/copydesk/internal/schema"
	"github.com/copydesk/copydesk/internal/store"
	"github.com/copydesk/copydesk/internal/tags"
	"github.com/copydesk/copydesk/internal/web"
)

var (
	dataDir      string
	manifestPath string
	dbPath       string
	log          zerolog.Logger
)

func main() {
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	// Parse global flags
	globalFlags := flag.NewFlagSet("global", flag.ExitOnError)
	dataDirFlag := globalFlags.String("data-dir", "./data", "Directory for database and index files")
	manifestFlag := globalFlags.String("manifest", "./collections.yaml", "Path to the collections manifest")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Find where the command starts (skip global flags)
	commandIdx := 1
	for i := 1; i < len(os.Args); i++ {
		if !strings.HasPrefix(os.Args[i], "-") {
			commandIdx = i
			break
		}
	}
	if commandIdx > 1 {
		globalFlags.Parse(os.Args[1:commandIdx])
	}

	dataDir = *dataDirFlag
	manifestPath = *manifestFlag
	dbPath = dataDir + "/content.db"

	command := os.Args[commandIdx]

	switch command {
	case "serve":
		serveFlags := flag.NewFlagSet("serve", flag.ExitOnError)
		port := serveFlags.String("port", "7180", "Port to listen on")
		host := serveFlags.String("host", "localhost", "Host to bind to")
		collection := serveFlags.String("collection", "", "Collection to activate at startup")
		serveFlags.Parse(os.Args[commandIdx+1:])
		runServe(*host, *port, *collection)
	case "collections":
		runCollections()
	case "list":
		listFlags := flag.NewFlagSet("list", flag.ExitOnError)
		collection := listFlags.String("collection", "", "Collection to list (default: first in manifest)")
		q := listFlags.String("q", "", "Filter term")
		limit := listFlags.Int("limit", 0, "Page size")
		offset := listFlags.Int("offset", 0, "Page offset")
		listFlags.Parse(os.Args[commandIdx+1:])
		runList(*collection, *q, *limit, *offset)
	case "show":
		showFlags := flag.NewFlagSet("show", flag.ExitOnError)
		collection := showFlags.String("collection", "", "Collection the post lives in")
		showFlags.Parse(os.Args[commandIdx+1:])
		if showFlags.NArg() < 1 {
			fmt.Println("Error: post id required")
			fmt.Println("Usage: copydesk [global-flags] show [-collection=<slug>] <id>")
			os.Exit(1)
		}
		runShow(*collection, showFlags.Arg(0))
	case "tags":
		runTags()
	case "reindex":
		reindexFlags := flag.NewFlagSet("reindex", flag.ExitOnError)
		collection := reindexFlags.String("collection", "", "Collection whose bleve index to rebuild")
		reindexFlags.Parse(os.Args[commandIdx+1:])
		runReindex(*collection)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Copydesk - backend-agnostic content console")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  copydesk [global-flags] <command> [flags]")
	fmt.Println()
	fmt.Println("Global Flags:")
	fmt.Println("  --data-dir=<dir>    Directory for database and index files (default: ./data)")
	fmt.Println("  --manifest=<path>   Collections manifest (default: ./collections.yaml)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve [flags]                    Start the JSON API server")
	fmt.Println("  collections                      List known collections")
	fmt.Println("  list [flags]                     List posts in a collection")
	fmt.Println("  show [-collection=<slug>] <id>   Show a single post")
	fmt.Println("  tags                             Show tag usage counts across collections")
	fmt.Println("  reindex [-collection=<slug>]     Rebuild a collection's bleve index from storage")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  copydesk collections")
	fmt.Println("  copydesk list -collection=blog -q=kubernetes")
	fmt.Println("  copydesk show -collection=blog 42")
	fmt.Println("  copydesk serve -port=3000")
	fmt.Println("  copydesk --data-dir=$HOME/.copydesk reindex -collection=notes")
}

// app bundles everything a subcommand needs: the registry with backends
// attached, the open store, and a ready coordinator.
type app struct {
	manifest *schema.Manifest
	registry *schema.Registry
	db       *store.DB
	coord    *content.Coordinator
	bleves   map[string]*backend.Bleve
}

func openApp() *app {
	manifest, err := schema.LoadManifest(manifestPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading manifest")
	}

	registry, err := manifest.Registry()
	if err != nil {
		log.Fatal().Err(err).Msg("building registry")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatal().Err(err).Msg("creating data directory")
	}

	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("opening database")
	}

	if err := db.EnsureCollections(registry); err != nil {
		log.Fatal().Err(err).Msg("creating collection tables")
	}

	a := &app{
		manifest: manifest,
		registry: registry,
		db:       db,
		bleves:   make(map[string]*backend.Bleve),
	}

	for _, coll := range registry.All() {
		spec := manifest.BackendSpecFor(coll.Slug)
		obj, err := a.buildBackend(coll.Slug, spec)
		if err != nil {
			log.Fatal().Err(err).Str("collection", coll.Slug).Msg("setting up backend")
		}
		coll.Backend = obj
	}

	syncer := tags.New(db.SQL())
	a.coord = content.New(registry, db, syncer, log)
	return a
}

func (a *app) buildBackend(slug string, spec schema.BackendSpec) (any, error) {
	switch spec.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return backend.NewMemory(), nil
	case "bleve":
		path := spec.Path
		if path == "" {
			path = dataDir + "/bleve-" + slug
		}
		b, err := backend.OpenBleve(path)
		if err != nil {
			return nil, err
		}
		a.bleves[slug] = b
		return b, nil
	case "remote":
		if spec.URL == "" {
			return nil, fmt.Errorf("remote backend needs a url")
		}
		return backend.NewRemote(spec.URL, os.Getenv("COPYDESK_TOKEN")), nil
	default:
		return nil, fmt.Errorf("unknown backend type %q", spec.Type)
	}
}

func (a *app) Close() {
	for _, b := range a.bleves {
		b.Close()
	}
	a.db.Close()
}

// activate switches to the named collection, defaulting to the first one in
// the manifest.
func (a *app) activate(slug string) {
	if slug == "" {
		slugs := a.registry.Slugs()
		if len(slugs) == 0 {
			log.Fatal().Msg("no collections in manifest")
		}
		slug = slugs[0]
	}
	if err := a.coord.SetActiveCollection(slug); err != nil {
		log.Fatal().Err(err).Msg("activating collection")
	}
}

func runServe(host, port, collection string) {
	a := openApp()
	defer a.Close()
	a.activate(collection)

	server := web.NewServer(a.coord, log)
	addr := host + ":" + port

	log.Info().Str("addr", "http://"+addr).Msg("starting server")
	if err := http.ListenAndServe(addr, server.Handler()); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func runCollections() {
	a := openApp()
	defer a.Close()

	for _, coll := range a.registry.All() {
		backendType := a.manifest.BackendSpecFor(coll.Slug).Type
		if backendType == "" {
			backendType = "none"
		}
		var fieldNames []string
		for _, f := range coll.Fields {
			fieldNames = append(fieldNames, f.Name)
		}
		fmt.Printf("%-16s %-24s backend=%-8s fields=%s\n",
			coll.Slug, coll.Title, backendType, strings.Join(fieldNames, ","))
	}
}

func runList(collection, q string, limit, offset int) {
	a := openApp()
	defer a.Close()
	a.activate(collection)

	posts, err := a.coord.ListPosts(context.Background(), q, limit, offset)
	if err != nil {
		log.Fatal().Err(err).Msg("listing posts")
	}

	if len(posts) == 0 {
		fmt.Println("No posts found")
		return
	}
	for _, p := range posts {
		date := ""
		if p.Date != nil {
			date = p.Date.Format("2006-01-02")
		}
		title := p.Title
		if title == "" {
			title = p.Description
		}
		fmt.Printf("%-8s %-12s %-10s %s\n", p.ID, p.Slug, date, title)
	}
}

func runShow(collection, id string) {
	a := openApp()
	defer a.Close()
	a.activate(collection)

	post, err := a.coord.GetPost(context.Background(), id)
	if err != nil {
		log.Fatal().Err(err).Msg("fetching post")
	}

	fmt.Printf("ID:           %s\n", post.ID)
	fmt.Printf("Slug:         %s\n", post.Slug)
	fmt.Printf("Title:        %s\n", post.Title)
	fmt.Printf("Description:  %s\n", post.Description)
	if post.Date != nil {
		fmt.Printf("Date:         %s\n", post.Date.Format(time.RFC3339))
	}
	if post.ExternalLink != "" {
		fmt.Printf("Link:         %s\n", post.ExternalLink)
	}
	if post.ImageURL != "" {
		fmt.Printf("Image:        %s\n", post.ImageURL)
	}
	if len(post.Tags) > 0 {
		var names []string
		for _, t := range post.Tags {
			names = append(names, t.Name)
		}
		fmt.Printf("Tags:         %s\n", strings.Join(names, ", "))
	}
	fmt.Println()
	fmt.Println(post.Content)
}

func runTags() {
	a := openApp()
	defer a.Close()

	counts, err := a.coord.TagCounts(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("fetching tag counts")
	}

	if len(counts) == 0 {
		fmt.Println("No tags in use")
		return
	}
	for _, tc := range counts {
		fmt.Printf("%-24s %d\n", tc.Name, tc.Count)
	}
}

func runReindex(collection string) {
	a := openApp()
	defer a.Close()

	if collection == "" {
		log.Fatal().Msg("reindex requires -collection")
	}
	coll, ok := a.registry.Get(collection)
	if !ok {
		log.Fatal().Str("collection", collection).Msg("unknown collection")
	}
	b, ok := a.bleves[collection]
	if !ok {
		log.Fatal().Str("collection", collection).Msg("collection has no bleve backend")
	}

	n, err := b.ReindexFromStore(context.Background(), a.db.Accessor(coll))
	if err != nil {
		log.Fatal().Err(err).Msg("reindexing")
	}
	fmt.Printf("Indexed %d records from %s\n", n, collection)
}
