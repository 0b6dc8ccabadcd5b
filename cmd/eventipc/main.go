// Command eventipc runs an event server, or talks to one, from the shell.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/randalmurphal/eventipc/pkg/eventipc"
	"github.com/randalmurphal/eventipc/pkg/eventipc/config"
	"github.com/randalmurphal/eventipc/pkg/eventipc/crypto"
	"github.com/randalmurphal/eventipc/pkg/eventipc/event"
	"github.com/randalmurphal/eventipc/pkg/eventipc/journal"
)

// Version is set at build time.
var version = "dev"

const banner = `
                       _   _
  _____   _____ _ __ | |_(_)_ __   ___
 / _ \ \ / / _ \ '_ \| __| | '_ \ / __|
|  __/\ V /  __/ | | | |_| | |_) | (__
 \___| \_/ \___|_| |_|\__|_| .__/ \___|
                           |_|
`

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, args)
	case "emit":
		err = runEmit(ctx, args)
	case "listen":
		err = runListen(ctx, args)
	case "keygen":
		err = runKeygen()
	case "incidents":
		err = runIncidents(ctx, args)
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: eventipc <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve      Answer echo/ping requests and broadcast heartbeats")
	fmt.Println("  emit       Send one request and print the reply")
	fmt.Println("  listen     Print broadcast events until interrupted")
	fmt.Println("  keygen     Print a random 256-bit hex key")
	fmt.Println("  incidents  Show recorded tamper, decode and handler incidents")
}

// commonFlags are accepted by every command that opens a connection.
// Flags that are set override the configuration file.
type commonFlags struct {
	configPath string
	url        string
	port       int
	cipher     string
	key        string
	serializer string
	logLevel   string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", os.Getenv("EVENTIPC_CONFIG"), "Config file (yaml, json or toml)")
	fs.StringVar(&c.url, "url", "", "Endpoint URL, e.g. tcp://127.0.0.1")
	fs.IntVar(&c.port, "port", 0, "Broadcast port; requests use port+1")
	fs.StringVar(&c.cipher, "cipher", "", "none, aes-256-gcm or xchacha20-poly1305")
	fs.StringVar(&c.key, "key", os.Getenv("EVENTIPC_KEY"), "Hex encoded 32-byte key")
	fs.StringVar(&c.serializer, "serializer", "", "json or proto")
	fs.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error")
}

// settings loads the config file and applies explicitly set flags.
func (c *commonFlags) settings(fs *flag.FlagSet) (config.Settings, error) {
	s, err := config.LoadSettings(c.configPath)
	if err != nil {
		return config.Settings{}, fmt.Errorf("loading config: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			s.URL = c.url
		case "port":
			s.Port = c.port
		case "cipher":
			s.Cipher = c.cipher
		case "serializer":
			s.Serializer = c.serializer
		case "log-level":
			s.LogLevel = c.logLevel
		}
	})
	if c.key != "" {
		s.Key = c.key
	}

	if err := s.Validate(); err != nil {
		return config.Settings{}, err
	}
	return s, nil
}

func agentOptions(s config.Settings, logger *slog.Logger) ([]eventipc.Option, error) {
	opts, err := eventipc.OptionsFromSettings(s)
	if err != nil {
		return nil, err
	}
	return append(opts, eventipc.WithLogger(logger)), nil
}

func warnOnTamper(name string) func() {
	red := color.New(color.FgRed, color.Bold)
	return func() {
		red.Fprintf(os.Stderr, "!! %s dropped a frame that failed authentication\n", name)
	}
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	interval := fs.Duration("interval", 5*time.Second, "Heartbeat broadcast interval, 0 disables")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := common.settings(fs)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	logger := setupLogger(s.LogLevel, s.LogFormat)
	opts, err := agentOptions(s, logger)
	if err != nil {
		return err
	}

	srv := eventipc.NewServer(opts...)
	defer srv.Shutdown()
	srv.SetOnCompromisedCallback(warnOnTamper("server"))

	srv.On("echo", event.Replier(func(_ context.Context, p any) any {
		return p
	}))
	srv.On("ping", event.Replier(func(context.Context, any) any {
		return "pong"
	}))
	srv.On("time", event.Replier(func(context.Context, any) any {
		return time.Now().UTC().Format(time.RFC3339Nano)
	}))

	if err := srv.Serve(ctx, s.URL, uint16(s.Port), eventipc.ConnectOptionsFromSettings(s)...); err != nil {
		return fmt.Errorf("serving: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Broadcast: %s:%d\n", s.URL, s.Port)
	green.Print("    ▶ ")
	fmt.Printf("Requests:  %s:%d\n", s.URL, s.Port+1)
	green.Print("    ▶ ")
	fmt.Printf("Cipher:    %s\n", s.Cipher)
	fmt.Println()

	if *interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for seq := 1; ; seq++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := srv.Emit(ctx, "heartbeat", map[string]any{"seq": seq}); err != nil {
				logger.Warn("heartbeat failed", "error", err)
			}
		}
	}
}

func runEmit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("emit", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	name := fs.String("event", "ping", "Event name")
	payload := fs.String("payload", "", "JSON payload, empty sends {}")
	timeout := fs.Duration("timeout", 5*time.Second, "Reply timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := common.settings(fs)
	if err != nil {
		return err
	}
	s.RequestTimeout = *timeout

	var body any
	if *payload != "" {
		if err := json.Unmarshal([]byte(*payload), &body); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
	}

	logger := setupLogger(s.LogLevel, s.LogFormat)
	opts, err := agentOptions(s, logger)
	if err != nil {
		return err
	}

	cli := eventipc.NewClient(opts...)
	defer cli.Shutdown()
	cli.SetOnCompromisedCallback(warnOnTamper("client"))

	if err := cli.Connect(ctx, s.URL, uint16(s.Port), eventipc.ConnectOptionsFromSettings(s)...); err != nil {
		return err
	}

	reply, err := cli.Emit(ctx, *name, body)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(reply, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting reply: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func runListen(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("listen", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	events := fs.String("events", "heartbeat", "Comma separated event names")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := common.settings(fs)
	if err != nil {
		return err
	}

	logger := setupLogger(s.LogLevel, s.LogFormat)
	opts, err := agentOptions(s, logger)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	counts := make(map[string]int)
	opts = append(opts, eventipc.WithMiddleware(event.MetricsMiddleware(func(name string) {
		mu.Lock()
		counts[name]++
		mu.Unlock()
	}, nil)))

	cli := eventipc.NewClient(opts...)
	defer cli.Shutdown()
	cli.SetOnCompromisedCallback(warnOnTamper("client"))

	cyan := color.New(color.FgCyan)
	for _, name := range strings.Split(*events, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cli.On(name, func(ctx context.Context, p any) {
			data, err := json.Marshal(p)
			if err != nil {
				data = []byte(fmt.Sprint(p))
			}
			cyan.Printf("%s ", event.EventName(ctx))
			fmt.Println(string(data))
		})
	}

	if err := cli.Connect(ctx, s.URL, uint16(s.Port), eventipc.ConnectOptionsFromSettings(s)...); err != nil {
		return err
	}

	<-ctx.Done()
	cli.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	gray := color.New(color.FgHiBlack)
	for _, name := range names {
		gray.Printf("%s: %d received\n", name, counts[name])
	}
	return nil
}

func runKeygen() error {
	key, err := crypto.GenerateKeyHex()
	if err != nil {
		return err
	}
	fmt.Println(key)
	return nil
}

func runIncidents(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("incidents", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("EVENTIPC_CONFIG"), "Config file (yaml, json or toml)")
	path := fs.String("journal", "", "Journal database, defaults to journal.path from config")
	limit := fs.Int("limit", 20, "Number of incidents to show, 0 for all")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dbPath := *path
	if dbPath == "" {
		s, err := config.LoadSettings(*configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		dbPath = s.JournalPath
	}
	if dbPath == "" {
		return errors.New("no journal configured: pass -journal or set journal.path")
	}

	store, err := journal.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	counts, err := store.CountByKind(ctx)
	if err != nil {
		return err
	}
	incidents, err := store.List(ctx, *limit)
	if err != nil {
		return err
	}

	yellow := color.New(color.FgYellow)
	gray := color.New(color.FgHiBlack)
	kinds := []journal.Kind{journal.KindTampered, journal.KindMalformed, journal.KindHandlerFailed, journal.KindConnectFailed}
	for _, k := range kinds {
		fmt.Printf("%-15s %d\n", k, counts[k])
	}
	fmt.Println()

	for _, inc := range incidents {
		gray.Printf("%s ", inc.At.Local().Format(time.DateTime))
		yellow.Printf("%-14s ", inc.Kind)
		fmt.Printf("%s/%s", inc.Role, shortID(inc.AgentID))
		if inc.Event != "" {
			fmt.Printf(" event=%s", inc.Event)
		}
		if inc.Size > 0 {
			fmt.Printf(" size=%d", inc.Size)
		}
		if inc.Detail != "" {
			gray.Printf(" %s", inc.Detail)
		}
		fmt.Println()
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
