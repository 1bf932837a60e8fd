package main

import (
	"boardsync/internal/canvas"
	"boardsync/internal/client"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var tailLimit int

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow a room: replay its history, then print shapes and chat as they arrive",
	RunE:  runTail,
}

func init() {
	tailCmd.Flags().IntVar(&tailLimit, "limit", 100, "history entries to replay on join")
}

// termRenderer prints the shapes a repaint adds since the previous one. The
// board only shrinks when AI shapes are cleared locally, which tail never
// does, so a shorter frame just resets the cursor.
type termRenderer struct {
	out     io.Writer
	printed int
}

func (r *termRenderer) Render(f canvas.Frame) {
	if len(f.Shapes) < r.printed {
		r.printed = 0
	}
	for _, s := range f.Shapes[r.printed:] {
		fmt.Fprintln(r.out, describe(s))
	}
	if len(f.Shapes) != r.printed {
		fmt.Fprintln(r.out, statusStyle.Render(fmt.Sprintf("%d shapes", len(f.Shapes))))
	}
	r.printed = len(f.Shapes)
}

func runTail(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sess, err := client.Dial(ctx, client.Config{
		ServerURL:    serverURL,
		Token:        token,
		RoomID:       roomID,
		HistoryLimit: tailLimit,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	out := cmd.OutOrStdout()
	board := canvas.New(&termRenderer{out: out}, sess)
	boardDone := make(chan error, 1)
	go func() { boardDone <- board.Run(ctx) }()

	fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("following room %d on %s", roomID, serverURL)))
	err = sess.Attach(ctx, board, func(userID, text string) {
		fmt.Fprintln(out, chatLine(userID, text))
	})
	stop()
	<-boardDone

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
