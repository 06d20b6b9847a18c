// Package main provides the player CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	playerv1 "github.com/osa030/lorelei/internal/api/playerv1"
	"github.com/osa030/lorelei/internal/api/playerv1/playerv1connect"
)

var (
	app    = kingpin.New("lorelei-playerctl", "lorelei player client")
	server = app.Flag("server", "Player address").Default("http://localhost:8080").Envar("LORELEI_PLAYER_URL").String()

	statusCmd = app.Command("status", "Show catalog, queue and the current selection").Default()

	playCmd  = app.Command("play", "Play a catalog song")
	playSong = playCmd.Arg("song-id", "Song ID").Required().String()

	enqueueCmd  = app.Command("enqueue", "Append a catalog song to the queue").Alias("add")
	enqueueSong = enqueueCmd.Arg("song-id", "Song ID").Required().String()

	pickCmd      = app.Command("pick", "Play a queue entry")
	pickPosition = pickCmd.Arg("position", "Queue position (0-based)").Required().Int32()
	pickJump     = pickCmd.Flag("jump", "Allow 'prev' to step back instead of restarting").Bool()

	nextCmd = app.Command("next", "Advance to the next song")

	prevCmd     = app.Command("prev", "Step back, or restart the current song")
	prevElapsed = prevCmd.Flag("elapsed", "Playback position of the current song").Default("0s").Duration()

	removeCmd      = app.Command("remove", "Remove a queue entry").Alias("rm")
	removePosition = removeCmd.Arg("position", "Queue position (0-based)").Required().Int32()

	clearCmd = app.Command("clear", "Empty the queue")

	dropCmd = app.Command("drop-played", "Drop queue entries up to and including the current one")

	modeCmd  = app.Command("mode", "Switch the active source")
	modeName = modeCmd.Arg("mode", "catalog or queue").Required().Enum(playerv1.ModeCatalog, playerv1.ModeQueue)

	editCmd    = app.Command("edit", "Edit a song's title or artist")
	editSong   = editCmd.Arg("song-id", "Song ID").Required().String()
	editTitle  = editCmd.Flag("title", "New title").String()
	editArtist = editCmd.Flag("artist", "New artist").String()

	deleteCmd  = app.Command("delete", "Delete a song from the catalog")
	deleteSong = deleteCmd.Arg("song-id", "Song ID").Required().String()

	refreshCmd = app.Command("refresh", "Reload the catalog")

	subscribeCmd = app.Command("subscribe", "Stream state changes")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := playerv1connect.NewPlayerServiceClient(http.DefaultClient, *server)
	ctx := context.Background()

	switch command {
	case statusCmd.FullCommand():
		resp, err := client.GetState(ctx, connect.NewRequest(&playerv1.GetStateRequest{}))
		exitOnError(err)
		printState(resp.Msg.State)
	case playCmd.FullCommand():
		report(client.Play(ctx, connect.NewRequest(&playerv1.PlayRequest{SongID: *playSong})))
	case enqueueCmd.FullCommand():
		report(client.Enqueue(ctx, connect.NewRequest(&playerv1.EnqueueRequest{SongID: *enqueueSong})))
	case pickCmd.FullCommand():
		req := connect.NewRequest(&playerv1.QueuePositionRequest{Position: *pickPosition})
		if *pickJump {
			report(client.SelectFromQueue(ctx, req))
		} else {
			report(client.PlayFromQueue(ctx, req))
		}
	case nextCmd.FullCommand():
		report(client.Next(ctx, connect.NewRequest(&playerv1.NextRequest{})))
	case prevCmd.FullCommand():
		previous(ctx, client, *prevElapsed)
	case removeCmd.FullCommand():
		report(client.RemoveFromQueue(ctx, connect.NewRequest(&playerv1.QueuePositionRequest{Position: *removePosition})))
	case clearCmd.FullCommand():
		report(client.ClearQueue(ctx, connect.NewRequest(&playerv1.ClearQueueRequest{})))
	case dropCmd.FullCommand():
		report(client.DropPlayed(ctx, connect.NewRequest(&playerv1.DropPlayedRequest{})))
	case modeCmd.FullCommand():
		report(client.SwitchMode(ctx, connect.NewRequest(&playerv1.SwitchModeRequest{Mode: *modeName})))
	case editCmd.FullCommand():
		edit(ctx, client)
	case deleteCmd.FullCommand():
		report(client.DeleteSong(ctx, connect.NewRequest(&playerv1.DeleteSongRequest{SongID: *deleteSong})))
	case refreshCmd.FullCommand():
		report(client.Refresh(ctx, connect.NewRequest(&playerv1.RefreshRequest{})))
	case subscribeCmd.FullCommand():
		subscribe(ctx, client)
	}
}

func previous(ctx context.Context, client *playerv1connect.PlayerServiceClient, elapsed time.Duration) {
	resp, err := client.Previous(ctx, connect.NewRequest(&playerv1.PreviousRequest{ElapsedMs: elapsed.Milliseconds()}))
	exitOnError(err)
	if !resp.Msg.Success {
		fmt.Printf("Ignored: %s\n", resp.Msg.Message)
		return
	}
	if resp.Msg.Restarted {
		fmt.Println("Restarting current song")
	}
	printNowPlaying(resp.Msg.State)
}

func edit(ctx context.Context, client *playerv1connect.PlayerServiceClient) {
	req := &playerv1.EditSongRequest{SongID: *editSong}
	if *editTitle != "" {
		req.Title = editTitle
	}
	if *editArtist != "" {
		req.Artist = editArtist
	}
	resp, err := client.EditSong(ctx, connect.NewRequest(req))
	exitOnError(err)
	if !resp.Msg.Success {
		fmt.Printf("Failed: %s\n", resp.Msg.Message)
		os.Exit(1)
	}
	if resp.Msg.Song != nil {
		fmt.Printf("Updated: %s\n", formatSong(*resp.Msg.Song))
	}
}

func subscribe(ctx context.Context, client *playerv1connect.PlayerServiceClient) {
	stream, err := client.Subscribe(ctx, connect.NewRequest(&playerv1.SubscribeRequest{}))
	exitOnError(err)

	fmt.Println("Subscribed to player state. Press Ctrl+C to exit.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nUnsubscribing...")
		os.Exit(0)
	}()

	for stream.Receive() {
		n := stream.Msg()
		fmt.Printf("\n[Sequence: %d] === %s ===\n", n.SequenceNo, strings.ToUpper(strings.ReplaceAll(n.Type, "_", " ")))
		printState(n.State)
	}
	if err := stream.Err(); err != nil {
		fmt.Printf("Stream error: %v\n", err)
	}
}

// report prints the outcome of a state-changing call.
func report(resp *connect.Response[playerv1.OperationResponse], err error) {
	exitOnError(err)
	if !resp.Msg.Success {
		fmt.Printf("Ignored: %s\n", resp.Msg.Message)
		return
	}
	printNowPlaying(resp.Msg.State)
}

func printState(st *playerv1.PlayerState) {
	if st == nil {
		return
	}
	fmt.Printf("Mode: %s\n", st.Mode)
	printNowPlaying(st)

	fmt.Printf("\nCatalog (%d):\n", len(st.Catalog))
	for i, s := range st.Catalog {
		fmt.Printf("  %s %3d  %-36s  %s\n", marker(st, playerv1.ModeCatalog, i), i, s.ID, formatSong(s))
	}
	fmt.Printf("\nQueue (%d):\n", len(st.Queue))
	for i, s := range st.Queue {
		fmt.Printf("  %s %3d  %-36s  %s\n", marker(st, playerv1.ModeQueue, i), i, s.ID, formatSong(s))
	}
}

func printNowPlaying(st *playerv1.PlayerState) {
	if st == nil || st.NowPlaying == nil {
		fmt.Println("Now playing: (nothing)")
		return
	}
	np := st.NowPlaying
	fmt.Printf("Now playing: %s [%s #%d] (token %d)\n", formatSong(np.Song), st.Mode, st.Index, np.Token)
}

func marker(st *playerv1.PlayerState, mode string, i int) string {
	if st.Mode == mode && int(st.Index) == i {
		return ">"
	}
	return " "
}

func formatSong(s playerv1.SongInfo) string {
	if s.Artist == "" {
		return s.Title
	}
	return s.Artist + " - " + s.Title
}

func exitOnError(err error) {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
