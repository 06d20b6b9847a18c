// Package main provides the catalog CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/osa030/lorelei/internal/domain/song"
	"github.com/osa030/lorelei/internal/infra/songapi"
)

var (
	app     = kingpin.New("lorelei-catalogctl", "lorelei catalog client")
	server  = app.Flag("server", "Catalog server address").Default("http://localhost:5000").Envar("LORELEI_CATALOG_URL").String()
	timeout = app.Flag("timeout", "Request timeout").Default("60s").Duration()

	listCmd = app.Command("list", "List all songs").Alias("ls").Default()

	searchCmd   = app.Command("search", "Search songs by title or artist")
	searchQuery = searchCmd.Arg("query", "Search text").Required().String()

	uploadCmd    = app.Command("upload", "Upload an audio file")
	uploadFile   = uploadCmd.Arg("file", "Audio file").Required().ExistingFile()
	uploadTitle  = uploadCmd.Flag("title", "Title (default: from tags or file name)").String()
	uploadArtist = uploadCmd.Flag("artist", "Artist (default: from tags or file name)").String()

	editCmd    = app.Command("edit", "Edit a song")
	editID     = editCmd.Arg("song-id", "Song ID").Required().String()
	editTitle  = editCmd.Flag("title", "New title").String()
	editArtist = editCmd.Flag("artist", "New artist").String()
	editAudio  = editCmd.Flag("audio", "Replacement audio file").ExistingFile()

	deleteCmd = app.Command("delete", "Delete a song and its audio").Alias("rm")
	deleteID  = deleteCmd.Arg("song-id", "Song ID").Required().String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client, err := songapi.New(songapi.Config{BaseURL: *server, Timeout: *timeout})
	exitOnError(err)

	ctx := context.Background()

	switch command {
	case listCmd.FullCommand():
		songs, err := client.FetchAll(ctx)
		exitOnError(err)
		printSongs(songs)
	case searchCmd.FullCommand():
		songs, err := client.Search(ctx, *searchQuery)
		exitOnError(err)
		printSongs(songs)
	case uploadCmd.FullCommand():
		upload(ctx, client)
	case editCmd.FullCommand():
		edit(ctx, client)
	case deleteCmd.FullCommand():
		exitOnError(client.Remove(ctx, *deleteID))
		fmt.Println("Deleted")
	}
}

func upload(ctx context.Context, client *songapi.Client) {
	f, err := os.Open(*uploadFile)
	exitOnError(err)
	defer f.Close()

	created, err := client.Create(ctx, *uploadTitle, *uploadArtist, songapi.File{Name: filepath.Base(*uploadFile), Content: f})
	exitOnError(err)
	fmt.Printf("Uploaded: %s  %s\n", created.ID, created)
}

func edit(ctx context.Context, client *songapi.Client) {
	var patch song.Patch
	if *editTitle != "" {
		patch.Title = editTitle
	}
	if *editArtist != "" {
		patch.Artist = editArtist
	}

	var (
		updated song.Song
		err     error
	)
	if *editAudio != "" {
		f, openErr := os.Open(*editAudio)
		exitOnError(openErr)
		defer f.Close()
		updated, err = client.Replace(ctx, *editID, patch, songapi.File{Name: filepath.Base(*editAudio), Content: f})
	} else {
		if patch.IsEmpty() {
			fmt.Println("Error: nothing to edit (use --title, --artist or --audio)")
			os.Exit(1)
		}
		updated, err = client.Update(ctx, *editID, patch)
	}
	exitOnError(err)
	fmt.Printf("Updated: %s  %s\n", updated.ID, updated)
}

func printSongs(songs []song.Song) {
	if len(songs) == 0 {
		fmt.Println("No songs.")
		return
	}
	for _, s := range songs {
		fmt.Printf("%-36s  %-40s  %s  %s\n", s.ID, s.String(), s.AudioURL, s.CreatedAt.Local().Format(time.DateTime))
	}
	fmt.Printf("\n%d song(s)\n", len(songs))
}

func exitOnError(err error) {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
