package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"warkrs/internal/config"
	"warkrs/internal/engine"
	"warkrs/internal/httpapi"
	"warkrs/internal/logbus"
	"warkrs/internal/notify"
	"warkrs/internal/siakad"
	"warkrs/internal/store/sqlite"
)

const banner = `==================================================
          WAR KRS - SIAKAD course sniper
==================================================`

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "./config.json", "path to config file (.json or .yaml)")
	showStatus := flag.Bool("status", false, "print configuration status and exit")
	showSetup := flag.Bool("setup", false, "print the configuration guide and exit")
	testTelegram := flag.Bool("test-telegram", false, "send a Telegram test message and exit")
	debugMode := flag.Bool("debug", false, "save fetched HTML pages for troubleshooting")
	assumeYes := flag.Bool("yes", false, "start without the interactive confirmation")
	flag.Parse()

	config.LoadDotEnv(".env")

	if *showSetup {
		printSetupGuide()
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	if *showStatus {
		printStatus(*configPath, cfg)
		return 0
	}

	if *testTelegram {
		return runTelegramTest(cfg)
	}

	fmt.Println(banner)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\nrun with -setup for the configuration guide\n", err)
		return 1
	}

	targets := sortedKeys(cfg.TargetCourses)
	fmt.Printf("Targets: %s\n", strings.Join(targets, ", "))
	fmt.Printf("Cycle delay: %s, request timeout: %s\n\n", cfg.Settings.CycleDelay(), cfg.Settings.Timeout())

	if !*assumeYes && !confirm("Start the registration run? (y/N): ") {
		fmt.Println("cancelled")
		return 0
	}

	bus := logbus.New(500)
	bus.SetMirror(os.Stdout)
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var journal *sqlite.Store
	if cfg.Storage.SQLitePath != "" {
		journal, err = sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open attempt journal: %v\n", err)
			return 1
		}
		defer journal.Close()
	}

	var notifiers notify.Multi
	var telegram *notify.TelegramNotifier
	if cfg.Telegram.Configured() {
		telegram = notify.NewTelegramNotifier(cfg.Telegram, bus)
		notifiers = append(notifiers, telegram)
	}
	var email *notify.EmailNotifier
	if cfg.Email.Enabled {
		email = notify.NewEmailNotifier(cfg.Email, bus)
		notifiers = append(notifiers, email)
	}

	client := siakad.NewClient(cfg.Cookies, cfg.Settings, bus)
	svc := siakad.NewService(client, cfg.URLs, bus)
	if *debugMode || cfg.Debug.Enabled {
		svc.EnableDebugDumps(cfg.Debug.Dir)
		bus.Log("info", "debug dumps enabled", map[string]any{"dir": cfg.Debug.Dir})
	}

	controller := engine.New(engine.Options{
		Service:  svc,
		Bus:      bus,
		Notifier: notifiers,
		Journal:  journal,
		Targets:  cfg.TargetCourses,
		Settings: cfg.Settings,
	})

	var statusSrv *http.Server
	if cfg.Status.Addr != "" {
		api := httpapi.New(httpapi.Options{Bus: bus, Controller: controller, Store: journal})
		statusSrv = &http.Server{
			Addr:              cfg.Status.Addr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := statusSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				bus.Log("error", "status server error", map[string]any{"error": err.Error()})
			}
		}()
		bus.Log("info", "status server listening", map[string]any{"addr": cfg.Status.Addr})
	}

	runErr := controller.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if statusSrv != nil {
		_ = statusSrv.Shutdown(shutdownCtx)
	}
	if telegram != nil {
		_ = telegram.Close(shutdownCtx)
	}
	if email != nil {
		_ = email.Close(shutdownCtx)
	}

	switch {
	case runErr == nil:
		fmt.Println("\n🎉 all target courses registered")
		return 0
	case errors.Is(runErr, context.Canceled):
		fmt.Println("\nstopped by user")
		return 130
	default:
		fmt.Fprintf(os.Stderr, "\nfatal: %v\n", runErr)
		return 1
	}
}

func runTelegramTest(cfg config.Config) int {
	if !cfg.Telegram.Configured() {
		fmt.Fprintln(os.Stderr, "telegram is not configured: set telegram.bot_token and telegram.chat_id (or TELEGRAM_BOT_TOKEN / TELEGRAM_CHAT_ID)")
		return 1
	}
	bus := logbus.New(50)
	n := notify.NewTelegramNotifier(cfg.Telegram, bus)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = n.Close(ctx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := n.TestConnection(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "telegram test failed: %v\n", err)
		return 1
	}
	fmt.Println("telegram test message sent")
	return 0
}

func printStatus(path string, cfg config.Config) {
	fmt.Println(banner)
	fmt.Printf("Config file:        %s\n", path)
	fmt.Printf("Cookies configured: %v\n", cfg.Cookies.Configured())
	fmt.Printf("Telegram:           %v\n", cfg.Telegram.Configured())
	fmt.Printf("Email:              %v\n", cfg.Email.Enabled)
	fmt.Printf("Attempt journal:    %s\n", orNone(cfg.Storage.SQLitePath))
	fmt.Printf("Status server:      %s\n", orNone(cfg.Status.Addr))
	fmt.Printf("Target courses:     %d\n", len(cfg.TargetCourses))
	for _, code := range sortedKeys(cfg.TargetCourses) {
		fmt.Printf("  - %s: class %s\n", code, cfg.TargetCourses[code])
	}
	fmt.Println("Settings:")
	fmt.Printf("  - request_timeout:     %ds\n", cfg.Settings.RequestTimeout)
	fmt.Printf("  - delay_seconds:       %ds\n", cfg.Settings.DelaySeconds)
	fmt.Printf("  - verification_delay:  %ds\n", cfg.Settings.VerificationDelay)
	fmt.Printf("  - inter_request_delay: %ds\n", cfg.Settings.InterRequestDelay)
	fmt.Printf("  - recovery_delay:      %ds\n", cfg.Settings.RecoveryDelay)
	if err := cfg.Validate(); err != nil {
		fmt.Printf("\nNOT ready to run: %v\n", err)
	} else {
		fmt.Println("\nready to run")
	}
}

func printSetupGuide() {
	fmt.Println(banner)
	fmt.Print(`
1. Log in to the SIAKAD portal in your browser.
2. Copy the session cookies (developer tools -> Application -> Cookies)
   into the "cookies" section of config.json, or export them as
   SIAKAD_COOKIE_<NAME> environment variables (a local .env file works too).
3. Fill "urls.pilih_mk" (enrollment listing page) and "urls.simpan_krs"
   (registration submission endpoint).
4. List your targets under "target_courses" as "COURSE-CODE": "class id".
   The class id is the value of the option in the course selection form.
5. Optional: "telegram" (bot_token + chat_id) and "email" for notifications,
   "storage.sqlite_path" for an attempt journal, "status.addr" for the local
   status server.
6. Run: warkrs -config config.json

Cookies expire. When every attempt starts failing with authentication
errors, refresh the cookies and restart.
`)
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func orNone(s string) string {
	if s == "" {
		return "(disabled)"
	}
	return s
}
