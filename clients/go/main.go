// Chatrix CLI - command line client for Chatrix
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/eldtechnologies/chatrix/clients/go/chatrix"
)

func NewChatrixCommand() *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "chatrix",
		Short: "Chatrix CLI - chat with people and the Chatrix AI",
		Example: `  chatrix register "Asha Verma"
  chatrix users
  chatrix chat ai
  chatrix chat <user_id>`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&baseURL, "url", envOr("CHATRIX_URL", "http://localhost:8080"), "Server URL")

	client := func() *chatrix.Client { return chatrix.NewClient(baseURL) }

	cmd.AddCommand(
		newRegisterCommand(client),
		newHealthCommand(client),
		newUsersCommand(client),
		newReadCommand(client),
		newChatCommand(client, &baseURL),
	)
	return cmd
}

func newRegisterCommand(client func() *chatrix.Client) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "register <full name>",
		Short: "Create an account and save the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client()
			user, err := c.Register(cmd.Context(), args[0], email)
			if err != nil {
				return err
			}
			if err := c.SaveConfig(); err != nil {
				return err
			}
			fmt.Printf("Registered as: %s (%s)\n", user.FullName, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	return cmd
}

func newHealthCommand(client func() *chatrix.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := client().Health(cmd.Context())
			if err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}
}

func newUsersCommand(client func() *chatrix.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := chatrix.NewConversationStore(chatrix.StoreConfig{API: client()})
			users, err := store.LoadUsers(cmd.Context())
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Printf("  %-36s  %s\n", u.ID, u.FullName)
			}
			return nil
		},
	}
}

func newReadCommand(client func() *chatrix.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "read <user_id|ai>",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd.Context(), client(), nil)
			if err != nil {
				return err
			}
			defer sess.close()

			sess.store.SelectPeer(peerArg(args[0]))
			if err := sess.store.LoadMessages(cmd.Context()); err != nil {
				return err
			}
			for _, m := range sess.store.Messages() {
				sess.printMessage(m)
			}
			return nil
		},
	}
}

func newChatCommand(client func() *chatrix.Client, baseURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <user_id|ai>",
		Short: "Open an interactive conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			c := client()
			var source chatrix.EventSource
			peer := peerArg(args[0])
			if peer.RealtimeDelivery() {
				sock, err := chatrix.DialEvents(ctx, *baseURL, c.Token, zerolog.Nop())
				if err != nil {
					fmt.Fprintln(os.Stderr, "realtime unavailable:", err)
				} else {
					defer sock.Close()
					source = newPrinter(sock, peer.ID())
				}
			}

			sess, err := openSession(ctx, c, source)
			if err != nil {
				return err
			}
			defer sess.close()

			sess.store.SelectPeer(peer)
			if err := sess.store.LoadMessages(ctx); err != nil {
				return err
			}
			sess.bridge.Subscribe(peer)
			defer sess.bridge.Unsubscribe()

			for _, m := range sess.store.Messages() {
				sess.printMessage(m)
			}
			fmt.Printf("-- chatting with %s, Ctrl-D to quit --\n", peer.Name())

			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					select {
					case lines <- scanner.Text():
					case <-ctx.Done():
						return
					}
				}
			}()

			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					seen := len(sess.store.Messages())
					if _, err := sess.store.Send(ctx, line); err != nil {
						fmt.Fprintln(os.Stderr, "!", err)
						continue
					}
					msgs := sess.store.Messages()
					if seen < len(msgs) {
						for _, m := range msgs[seen:] {
							// Pushed messages are echoed by the printer.
							if source != nil && m.SenderID == peer.ID() {
								continue
							}
							sess.printMessage(m)
						}
					}
				}
			}
		},
	}
}

// session bundles the store and its collaborators for one command.
type session struct {
	store   *chatrix.ConversationStore
	bridge  *chatrix.RealtimeBridge
	storage *chatrix.SQLiteStorage
	selfID  string
}

func openSession(ctx context.Context, c *chatrix.Client, source chatrix.EventSource) (*session, error) {
	if c.Token == "" {
		return nil, fmt.Errorf("not signed in: run `chatrix register` first")
	}

	me, err := c.Me(ctx)
	if err != nil {
		return nil, err
	}

	storage, err := chatrix.OpenSQLiteStorage(ctx, filepath.Join(c.ConfigDir, "chatrix.db"))
	if err != nil {
		return nil, err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)
	chime := chatrix.NewChime(func() chatrix.Player { return chatrix.BellPlayer{Out: os.Stdout} })
	store := chatrix.NewConversationStore(chatrix.StoreConfig{
		API:      c,
		Archive:  chatrix.NewArchive(storage, logger),
		Notifier: chatrix.NotifierFunc(func(msg string) { fmt.Fprintln(os.Stderr, "!", msg) }),
		Chime:    chime,
		Self:     *me,
	})

	return &session{
		store:   store,
		bridge:  chatrix.NewRealtimeBridge(source, store, chime),
		storage: storage,
		selfID:  me.ID,
	}, nil
}

func (s *session) close() {
	s.storage.Close()
}

func (s *session) printMessage(m chatrix.Message) {
	from := "them"
	switch m.SenderID {
	case s.selfID:
		from = "you"
	case chatrix.AIAssistantID:
		from = "ai"
	}
	fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), from, m.Text)
}

// printer wraps an EventSource so messages pushed by peerID are echoed as
// they arrive.
type printer struct {
	chatrix.EventSource
	peerID string
}

func newPrinter(source chatrix.EventSource, peerID string) chatrix.EventSource {
	return printer{EventSource: source, peerID: peerID}
}

func (p printer) On(event string, handler func(chatrix.Message)) {
	p.EventSource.On(event, func(m chatrix.Message) {
		handler(m)
		if m.SenderID == p.peerID {
			fmt.Printf("[%s] them: %s\n", m.CreatedAt.Local().Format("15:04"), m.Text)
		}
	})
}

func peerArg(arg string) chatrix.Peer {
	if strings.EqualFold(arg, "ai") {
		return chatrix.AIPeer
	}
	return chatrix.PeerFor(chatrix.User{ID: arg, FullName: arg})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func main() {
	if err := NewChatrixCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
