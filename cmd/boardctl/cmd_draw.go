package main

import (
	"boardsync/internal/client"
	"boardsync/internal/redis/ingest"
	"boardsync/internal/redis/redis_client"
	"boardsync/internal/shape"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	drawAI     bool
	drawNoWait bool

	injectUser     string
	injectHost     string
	injectPort     int
	injectPassword string
	injectDB       int
)

var drawCmd = &cobra.Command{
	Use:   "draw <rect|circle|line|pencil> <numbers...>",
	Short: "Draw one shape into the room",
	Long: `Draw one shape into the room and wait until the server broadcasts it back,
which happens only after it has been persisted.

  boardctl draw rect 10 10 200 120
  boardctl draw circle 300 200 40
  boardctl draw line 0 0 100 100
  boardctl draw pencil 0 0 5 8 12 11 20 12`,
	Args: cobra.MinimumNArgs(2),
	RunE: runDraw,
}

var chatCmd = &cobra.Command{
	Use:   "chat <text>",
	Short: "Send a chat message to the room",
	Args:  cobra.ExactArgs(1),
	RunE:  runChat,
}

var injectCmd = &cobra.Command{
	Use:   "inject <rect|circle|line|pencil> <numbers...>",
	Short: "Queue a shape on the Redis ingest stream instead of the socket",
	Long: `Queue a shape on the Redis ingest stream. A server started with
INGEST_ENABLED=true picks it up, persists it and broadcasts it to the room.
No token is needed; access to Redis is the credential.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runInject,
}

func init() {
	for _, c := range []*cobra.Command{drawCmd, injectCmd} {
		c.Flags().BoolVar(&drawAI, "ai", false, "mark the shape as AI generated")
	}
	drawCmd.Flags().BoolVar(&drawNoWait, "no-wait", false, "return once sent without waiting for the broadcast")
	chatCmd.Flags().BoolVar(&drawNoWait, "no-wait", false, "return once sent without waiting for the broadcast")

	injectCmd.Flags().StringVar(&injectUser, "user", "boardctl", "user id recorded with the shape")
	injectCmd.Flags().StringVar(&injectHost, "redis-host", envOr("REDIS_HOST", "localhost"), "redis host")
	injectCmd.Flags().IntVar(&injectPort, "redis-port", 6379, "redis port")
	injectCmd.Flags().StringVar(&injectPassword, "redis-password", os.Getenv("REDIS_PASSWORD"), "redis password")
	injectCmd.Flags().IntVar(&injectDB, "redis-db", 0, "redis database")
}

// echoWaiter watches the room for the broadcast of one frame.
type echoWaiter struct {
	match func(kind, userID, message string) bool
	done  chan struct{}
	fired bool
}

func (w *echoWaiter) check(kind, userID, message string) {
	if !w.fired && w.match(kind, userID, message) {
		w.fired = true
		close(w.done)
	}
}

func (w *echoWaiter) OnShape(userID, payload string) { w.check("shape", userID, payload) }
func (w *echoWaiter) OnChat(userID, text string)     { w.check("chat", userID, text) }

// sendAndWait joins the room, runs send and, unless --no-wait, blocks until
// the server broadcasts a frame accepted by match.
func sendAndWait(cmd *cobra.Command, send func(context.Context, *client.Session) error, match func(kind, userID, message string) bool) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	sess, err := client.Dial(ctx, client.Config{ServerURL: serverURL, Token: token, RoomID: roomID})
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := sess.Join(ctx); err != nil {
		return err
	}

	w := &echoWaiter{match: match, done: make(chan struct{})}
	listenCtx, stopListen := context.WithCancel(ctx)
	defer stopListen()
	listenErr := make(chan error, 1)
	if !drawNoWait {
		go func() { listenErr <- sess.Listen(listenCtx, w) }()
	}

	if err := send(ctx, sess); err != nil {
		return err
	}
	if drawNoWait {
		return nil
	}

	select {
	case <-w.done:
		return nil
	case err := <-listenErr:
		if err == nil {
			err = errors.New("connection closed before the broadcast arrived")
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("no broadcast within %s; the server may have failed to persist it", timeout)
	}
}

func runDraw(cmd *cobra.Command, args []string) error {
	s, err := parseShape(args[0], args[1:], drawAI)
	if err != nil {
		return err
	}
	s.Source = uuid.NewString()
	payload, err := shape.Encode(s)
	if err != nil {
		return err
	}

	err = sendAndWait(cmd,
		func(ctx context.Context, sess *client.Session) error { return sess.SendShape(ctx, payload) },
		func(kind, _, message string) bool {
			if kind != "shape" {
				return false
			}
			got, err := shape.Decode(message)
			return err == nil && got.Source == s.Source
		})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), kindStyle.Render("drawn")+" "+describe(s))
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	text := args[0]
	return sendAndWait(cmd,
		func(ctx context.Context, sess *client.Session) error { return sess.SendChat(ctx, text) },
		func(kind, _, message string) bool { return kind == "chat" && message == text })
}

func runInject(cmd *cobra.Command, args []string) error {
	s, err := parseShape(args[0], args[1:], drawAI)
	if err != nil {
		return err
	}
	s.Source = uuid.NewString()

	rdb, err := redis_client.NewRedisClient(injectHost, injectPort, injectPassword, injectDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	id, err := ingest.PublishShape(ctx, rdb, roomID, injectUser, s)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", kindStyle.Render("queued"), describe(s), mutedStyle.Render(id))
	return nil
}
