// kekar-chat is a terminal client for the Kekar chat and presence
// backend, wiring the SDK end to end: config, backend handle, session
// service, gateways and the conversation view-model.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/code-with-zain-hunzai/kekar-go/internal/auth"
	"github.com/code-with-zain-hunzai/kekar-go/internal/backend"
	"github.com/code-with-zain-hunzai/kekar-go/internal/chat"
	"github.com/code-with-zain-hunzai/kekar-go/internal/config"
	"github.com/code-with-zain-hunzai/kekar-go/internal/conversation"
	"github.com/code-with-zain-hunzai/kekar-go/internal/models"
	"github.com/code-with-zain-hunzai/kekar-go/internal/presence"
	"github.com/code-with-zain-hunzai/kekar-go/internal/session"
)

func main() {
	offline := flag.Bool("offline", false, "use the in-process backend instead of the remote service")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stderr).
			With().
			Timestamp().
			Logger()
	}

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	var be backend.Backend
	if *offline {
		be = backend.NewMemory()
	} else {
		be = backend.Open(cfg, logger)
	}
	defer be.Close()

	snaps := snapshotStore(cfg, logger)
	sessions := auth.NewService(be, snaps, logger)
	chatGW := chat.NewGateway(be, sessions, logger)
	presGW := presence.NewGateway(be, sessions, logger, cfg.HeartbeatInterval)

	ctx := context.Background()

	// Each invocation is self-contained: sign in up front when
	// credentials are in the environment.
	if email := os.Getenv("KEKAR_EMAIL"); email != "" {
		_, err := sessions.SignIn(ctx, auth.SignInParams{
			Email:    email,
			Password: os.Getenv("KEKAR_PASSWORD"),
		})
		if err != nil {
			logger.Warn().Err(err).Msg("environment sign-in failed")
		}
	}

	switch cmd := flag.Arg(0); cmd {
	case "signup":
		if flag.NArg() < 4 {
			fmt.Fprintln(os.Stderr, "Usage: kekar-chat signup <email> <password> <name>")
			os.Exit(1)
		}
		ident, err := sessions.SignUp(ctx, auth.SignUpParams{
			Email:    flag.Arg(1),
			Password: flag.Arg(2),
			Name:     flag.Arg(3),
		})
		exitOnError(err)
		fmt.Printf("signed up as %s (%s)\n", ident.DisplayName(), ident.ID)

	case "login":
		if flag.NArg() < 3 {
			fmt.Fprintln(os.Stderr, "Usage: kekar-chat login <email> <password>")
			os.Exit(1)
		}
		ident, err := sessions.SignIn(ctx, auth.SignInParams{
			Email:    flag.Arg(1),
			Password: flag.Arg(2),
		})
		exitOnError(err)
		fmt.Printf("signed in as %s (%s)\n", ident.DisplayName(), ident.ID)

	case "login-oauth":
		exitOnError(loginOAuth(ctx, cfg, sessions, logger))

	case "whoami":
		ident, ok := sessions.Current(ctx)
		if !ok {
			fmt.Println("not signed in")
			return
		}
		fmt.Printf("%s <%s> (%s)\n", ident.DisplayName(), ident.Email, ident.ID)

	case "users":
		for _, rec := range presGW.AllUsers(ctx) {
			fmt.Printf("  %-7s %s  %s  last seen %s\n",
				rec.Status, rec.UserID, rec.DisplayName(),
				rec.LastSeen.Local().Format("2006-01-02 15:04:05"))
		}

	case "conversations":
		convs, err := chatGW.Conversations(ctx)
		exitOnError(err)
		for _, conv := range convs {
			marker := ""
			if conv.UnreadCount > 0 {
				marker = fmt.Sprintf(" (%d unread)", conv.UnreadCount)
			}
			fmt.Printf("  %s %s%s: %s\n", conv.PartnerID, conv.PartnerName, marker, conv.LastMessage.Content)
		}

	case "unread":
		fmt.Println(chatGW.UnreadCount(ctx))

	case "chat":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: kekar-chat chat <peer-id>")
			os.Exit(1)
		}
		runChat(ctx, chatGW, presGW, sessions, logger, flag.Arg(1))

	default:
		usage()
		os.Exit(1)
	}
}

// loginOAuth runs the loopback callback flow: the user opens the
// provider's consent page in a browser, the redirect lands on the
// listener, and the tokens become a session.
func loginOAuth(ctx context.Context, cfg *config.Config, sessions *auth.Service, logger zerolog.Logger) error {
	listener := auth.NewCallbackListener(cfg.CallbackAddr, logger)
	if err := listener.Start(); err != nil {
		return err
	}
	defer listener.Close(ctx)

	fmt.Printf("waiting for the OAuth redirect on http://%s/auth/callback ...\n", cfg.CallbackAddr)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	tokens, err := listener.Wait(waitCtx)
	if err != nil {
		return err
	}

	callback := fmt.Sprintf("%s#access_token=%s&refresh_token=%s",
		cfg.RedirectURL,
		url.QueryEscape(tokens.AccessToken),
		url.QueryEscape(tokens.RefreshToken))
	ident, err := sessions.HandleCallback(ctx, callback)
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s (%s)\n", ident.DisplayName(), ident.ID)
	return nil
}

// runChat drives the conversation view-model interactively: stdin
// lines become sends, pushed messages print as they land.
func runChat(ctx context.Context, chatGW *chat.Gateway, presGW *presence.Gateway, sessions *auth.Service, logger zerolog.Logger, peerID string) {
	view := conversation.NewView(chatGW, presGW, sessions, logger)

	var lastShown int
	view.SetOnAppend(func() {
		msgs := view.Messages()
		for ; lastShown < len(msgs); lastShown++ {
			printMessage(msgs[lastShown], peerID)
		}
	})

	view.Open(ctx)
	view.SelectPeer(ctx, peerID)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		_ = view.Close(ctx)
		os.Exit(0)
	}()

	fmt.Println("type a message and press enter; /quit to leave")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "/quit" {
			break
		}
		if err := view.Send(ctx, line); err != nil {
			fmt.Fprintln(os.Stderr, "send failed:", err)
		}
	}

	if err := view.Close(ctx); err != nil {
		logger.Warn().Err(err).Msg("teardown failed")
	}
}

func printMessage(msg models.Message, peerID string) {
	who := "me"
	if msg.SenderID == peerID {
		who = "them"
	}
	ts := msg.CreatedAt.Local().Format("15:04:05")
	fmt.Printf("[%s] %s: %s\n", ts, who, msg.Content)
}

func snapshotStore(cfg *config.Config, logger zerolog.Logger) session.Store {
	switch cfg.SnapshotStore {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store, err := session.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis snapshot store unavailable, using memory")
			return session.NewMemory()
		}
		return store
	case "file":
		return session.NewFile(cfg.SnapshotDir)
	default:
		return session.NewMemory()
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Kekar chat terminal client

Usage: kekar-chat [-offline] <command> [args]

Commands:
  signup <email> <password> <name>   register and sign in
  login <email> <password>           password sign-in
  login-oauth                        sign in via the loopback OAuth flow
  whoami                             show the current identity
  users                              list other users, online first
  conversations                      list conversations with unread counts
  unread                             count unread messages
  chat <peer-id>                     interactive conversation

Environment:
  KEKAR_BACKEND_URL, KEKAR_BACKEND_ANON_KEY   remote backend credentials
  KEKAR_EMAIL, KEKAR_PASSWORD                 sign in before the command runs`)
}
