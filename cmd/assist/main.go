// ABOUTME: Interactive terminal client for the assistant backend
// ABOUTME: Wires config, credential storage, guest persistence, and the session controller

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/devassist/assist/internal/auth"
	"github.com/devassist/assist/internal/chat"
	"github.com/devassist/assist/internal/config"
	"github.com/devassist/assist/internal/guest"
	"github.com/devassist/assist/internal/modes"
	"github.com/devassist/assist/internal/quota"
	"github.com/devassist/assist/internal/remote"
	"github.com/devassist/assist/internal/session"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                _     _
  __ _ ___ ___(_)___| |_
 / _' / __/ __| / __| __|
| (_| \__ \__ \ \__ \ |_
 \__,_|___/___/_|___/\__|
`

// getConfigPath returns the path to the client config file.
// Priority: ASSIST_CONFIG env var > XDG_CONFIG_HOME/assist/config.yaml > ~/.config/assist/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("ASSIST_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "assist", "config.yaml")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func run(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = config.Default()
	}

	logger := setupLogger(cfg.Logging)

	creds := auth.NewCredentials(cfg.Auth.TokenPath, logger)
	remoteStore := remote.New(cfg.Server.URL, creds, cfg.Server.Timeout, logger)
	guestStore, err := guest.NewStore(cfg.Guest.DatabasePath, remoteStore, cfg.Guest.MaxThreads, logger)
	if err != nil {
		return fmt.Errorf("opening guest store: %w", err)
	}
	defer guestStore.Close()

	guard := quota.New(guestStore, cfg.Guest.MaxThreads, cfg.Guest.MaxMessages, logger)
	registry := modes.New(remoteStore, logger)

	controller := session.New(session.Backends{Remote: remoteStore, Guest: guestStore}, guard, registry, logger)

	a := &app{
		controller: controller,
		editor:     session.NewEditor(controller, logger),
		creds:      creds,
		authClient: auth.NewClient(cfg.Server.URL, cfg.Server.Timeout, logger),
		logger:     logger,
	}
	controller.AddListener(a)

	// Resume a stored credential if it is still valid, otherwise start as guest
	identity := creds.Resolve(time.Now())
	if err := controller.SetIdentity(ctx, identity); err != nil {
		// The backend may be unreachable at startup; fall back to guest so
		// local history stays usable
		logger.Warn("identity bind failed, continuing as guest", "error", err)
		if guestErr := controller.SetIdentity(ctx, chat.Guest()); guestErr != nil {
			return fmt.Errorf("binding guest session: %w", guestErr)
		}
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)
	fmt.Printf("Connected to %s as %s\n", cfg.Server.URL, a.whoami())
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	return a.loop(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Logs go to stderr so they never interleave with the prompt
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// app holds the interactive loop state.
type app struct {
	controller *session.Controller
	editor     *session.Editor
	creds      *auth.Credentials
	authClient *auth.Client
	logger     *slog.Logger
	scanner    *bufio.Scanner
}

// OnThreadCreated implements session.Listener.
func (a *app) OnThreadCreated(thread *chat.Thread) {}

// OnThreadUpdated implements session.Listener.
func (a *app) OnThreadUpdated(thread *chat.Thread) {}

// OnThreadDeleted implements session.Listener.
func (a *app) OnThreadDeleted(id string) {}

// OnQuotaExceeded implements session.Listener: prints the upgrade prompt.
func (a *app) OnQuotaExceeded(event session.QuotaEvent) {
	yellow := color.New(color.FgYellow)
	if errors.Is(event.Reason, chat.ErrThreadLimit) {
		yellow.Println("Guest sessions are limited to one conversation.")
	} else {
		yellow.Println("You have reached the guest message limit for this conversation.")
	}
	fmt.Printf("Create a free account to continue: /%s\n", event.Suggested)
}

func (a *app) loop(ctx context.Context) error {
	a.scanner = bufio.NewScanner(os.Stdin)
	a.scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), 1024*1024) // 1MB max input

	for {
		a.printPrompt()

		input, err := a.readLine(ctx)
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		if strings.HasPrefix(input, "/") {
			if err := a.dispatch(ctx, input); err != nil {
				color.Red("[error] %v", err)
			}
			fmt.Println()
			continue
		}

		if err := a.sendMessage(ctx, input); err != nil {
			if !errors.Is(err, chat.ErrMessageLimit) {
				color.Red("[error] %v", err)
			}
		}
		fmt.Println()
	}
}

// readLine reads one line from stdin while honoring context cancellation.
func (a *app) readLine(ctx context.Context) (string, error) {
	inputCh := make(chan string, 1)
	errCh := make(chan error, 1)

	go func() {
		if a.scanner.Scan() {
			inputCh <- a.scanner.Text()
		} else {
			if err := a.scanner.Err(); err != nil {
				errCh <- err
			} else {
				errCh <- io.EOF
			}
		}
	}()

	select {
	case <-ctx.Done():
		return "", io.EOF
	case err := <-errCh:
		return "", err
	case input := <-inputCh:
		return input, nil
	}
}

func (a *app) printPrompt() {
	green := color.New(color.FgGreen)
	if thread := a.controller.ActiveThread(); thread != nil {
		green.Printf("[%s]> ", truncate(thread.Title, 24))
	} else {
		green.Print("> ")
	}
}

func (a *app) dispatch(ctx context.Context, input string) error {
	parts := strings.SplitN(input, " ", 2)
	cmd := parts[0]
	args := ""
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}

	switch cmd {
	case "/new":
		return a.cmdNew(ctx)
	case "/list", "/ls":
		return a.cmdList()
	case "/open":
		return a.cmdOpen(ctx, args)
	case "/rename":
		return a.cmdRename(ctx, args)
	case "/delete", "/rm":
		return a.cmdDelete(ctx, args)
	case "/modes":
		return a.cmdModes()
	case "/mode":
		return a.cmdMode(args)
	case "/login":
		return a.cmdLogin(ctx, args)
	case "/register":
		return a.cmdRegister(ctx, args)
	case "/logout":
		return a.cmdLogout(ctx)
	case "/whoami":
		fmt.Printf("Signed in as %s\n", a.whoami())
		return nil
	case "/help":
		printHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s (try /help)", cmd)
	}
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /new                New conversation")
	fmt.Println("  /list               List conversations")
	fmt.Println("  /open <n>           Open a conversation by list number or id")
	fmt.Println("  /rename <title>     Rename the active conversation")
	fmt.Println("  /delete [n]         Delete a conversation (default: active)")
	fmt.Println("  /modes              List assistant modes")
	fmt.Println("  /mode <id>          Switch assistant mode")
	fmt.Println("  /login <email>      Sign in")
	fmt.Println("  /register <email> <name>   Create an account and sign in")
	fmt.Println("  /logout             Sign out and return to guest mode")
	fmt.Println("  /whoami             Show the current identity")
	fmt.Println("  /help               Show this help")
	fmt.Println("  /quit               Exit")
}

func (a *app) cmdNew(ctx context.Context) error {
	thread, err := a.controller.NewThread(ctx)
	if err != nil {
		if errors.Is(err, chat.ErrThreadLimit) {
			// The quota listener already printed the upgrade prompt
			return nil
		}
		return err
	}
	fmt.Printf("Started %q\n", thread.Title)
	return nil
}

func (a *app) cmdList() error {
	threads := a.controller.Threads()
	if len(threads) == 0 {
		fmt.Println("No conversations yet. Type a message or /new to start one.")
		return nil
	}

	activeID := a.controller.ActiveID()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  #\tTITLE\tMESSAGES\tUPDATED")
	for i, t := range threads {
		marker := " "
		if t.ID == activeID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %d\t%s\t%d\t%s\n",
			marker, i+1, truncate(t.Title, 40), len(t.Messages), t.UpdatedAt.Local().Format("Jan 02 15:04"))
	}
	return w.Flush()
}

func (a *app) cmdOpen(ctx context.Context, args string) error {
	if args == "" {
		return fmt.Errorf("usage: /open <number|id>")
	}

	id := args
	if n, err := strconv.Atoi(args); err == nil {
		threads := a.controller.Threads()
		if n < 1 || n > len(threads) {
			return fmt.Errorf("no conversation #%d", n)
		}
		id = threads[n-1].ID
	}

	thread, err := a.controller.OpenThread(ctx, id)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return fmt.Errorf("conversation not found")
		}
		return err
	}

	fmt.Printf("Opened %q\n", thread.Title)
	a.printHistory(thread)
	return nil
}

func (a *app) printHistory(thread *chat.Thread) {
	if len(thread.Messages) == 0 {
		return
	}
	gray := color.New(color.FgHiBlack)
	fmt.Println(strings.Repeat("-", 60))
	for _, msg := range thread.Messages {
		switch msg.Role {
		case chat.RoleUser:
			prefix := "you"
			if msg.Delivery == chat.DeliveryFailed {
				prefix = "you (not delivered)"
			}
			gray.Printf("%s: ", prefix)
			fmt.Println(msg.Content)
		case chat.RoleAssistant:
			fmt.Println(msg.Content)
		}
	}
	fmt.Println(strings.Repeat("-", 60))
}

func (a *app) cmdRename(ctx context.Context, title string) error {
	activeID := a.controller.ActiveID()
	if activeID == "" {
		return fmt.Errorf("no active conversation (use /open first)")
	}

	edit, err := a.editor.BeginEdit(activeID)
	if err != nil {
		return err
	}
	if err := a.editor.CommitEdit(ctx, edit, title); err != nil {
		return err
	}
	color.Green("✓ Renamed to %q", title)
	return nil
}

func (a *app) cmdDelete(ctx context.Context, args string) error {
	id := a.controller.ActiveID()
	if args != "" {
		id = args
		if n, err := strconv.Atoi(args); err == nil {
			threads := a.controller.Threads()
			if n < 1 || n > len(threads) {
				return fmt.Errorf("no conversation #%d", n)
			}
			id = threads[n-1].ID
		}
	}
	if id == "" {
		return fmt.Errorf("usage: /delete <number|id>")
	}

	if err := a.controller.DeleteThread(ctx, id); err != nil {
		return err
	}
	color.Green("✓ Deleted")
	return nil
}

func (a *app) cmdModes() error {
	available := a.controller.Modes()
	if len(available) == 0 {
		fmt.Println("No modes available")
		return nil
	}

	selected, hasSelected := a.controller.SelectedMode()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNAME\tDESCRIPTION")
	for _, m := range available {
		marker := " "
		if hasSelected && m.ID == selected.ID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %d\t%s\t%s\n", marker, m.ID, m.Name, truncate(m.Description, 50))
	}
	return w.Flush()
}

func (a *app) cmdMode(args string) error {
	if args == "" {
		return fmt.Errorf("usage: /mode <id>")
	}
	id, err := strconv.Atoi(args)
	if err != nil {
		return fmt.Errorf("invalid mode id: %s", args)
	}
	if err := a.controller.SelectMode(id); err != nil {
		return err
	}
	selected, _ := a.controller.SelectedMode()
	fmt.Printf("Now using %s\n", selected.Name)
	return nil
}

func (a *app) cmdLogin(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("usage: /login <email>")
	}

	fmt.Print("Password: ")
	password, err := a.readLine(ctx)
	if err != nil {
		return err
	}

	sess, err := a.authClient.Login(ctx, email, strings.TrimSpace(password))
	if err != nil {
		return err
	}
	if err := a.creds.Save(sess.Token, &sess.User); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	if err := a.controller.SetIdentity(ctx, chat.Authenticated(sess.User)); err != nil {
		return err
	}

	color.Green("✓ Signed in as %s", sess.User.Email)
	return nil
}

func (a *app) cmdRegister(ctx context.Context, args string) error {
	fields := strings.SplitN(args, " ", 2)
	if args == "" || fields[0] == "" {
		return fmt.Errorf("usage: /register <email> <full name>")
	}
	email := fields[0]
	fullName := ""
	if len(fields) > 1 {
		fullName = strings.TrimSpace(fields[1])
	}

	fmt.Print("Password: ")
	password, err := a.readLine(ctx)
	if err != nil {
		return err
	}
	password = strings.TrimSpace(password)

	if _, err := a.authClient.Register(ctx, email, fullName, password); err != nil {
		return err
	}

	// Registration does not sign the account in; log in with the same
	// credentials to complete the flow
	sess, err := a.authClient.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("account created but login failed: %w", err)
	}
	if err := a.creds.Save(sess.Token, &sess.User); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	if err := a.controller.SetIdentity(ctx, chat.Authenticated(sess.User)); err != nil {
		return err
	}

	color.Green("✓ Account created, signed in as %s", sess.User.Email)
	return nil
}

func (a *app) cmdLogout(ctx context.Context) error {
	if a.controller.Identity().IsGuest() {
		fmt.Println("Already in guest mode")
		return nil
	}
	if err := a.creds.Clear(); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	if err := a.controller.SetIdentity(ctx, chat.Guest()); err != nil {
		return err
	}
	fmt.Println("Signed out. Guest conversations are available again.")
	return nil
}

func (a *app) whoami() string {
	identity := a.controller.Identity()
	if identity.IsGuest() {
		return "guest"
	}
	user := identity.User()
	if user.FullName != "" {
		return fmt.Sprintf("%s <%s>", user.FullName, user.Email)
	}
	return user.Email
}

// sendMessage sends on the active thread, starting one implicitly when
// nothing is selected yet.
func (a *app) sendMessage(ctx context.Context, content string) error {
	if a.controller.ActiveID() == "" {
		if _, err := a.controller.NewThread(ctx); err != nil {
			if errors.Is(err, chat.ErrThreadLimit) {
				return nil
			}
			return err
		}
	}

	reply, err := a.controller.Send(ctx, content, nil)
	if err != nil {
		return err
	}

	fmt.Println(reply.Content)
	return nil
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
// Thread titles are user text, so slicing must not split a multibyte rune.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
