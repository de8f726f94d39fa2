// livechat: interactive terminal chat against the realtime streaming
// service. Text goes up, text and audio come back; audio is played
// through the local playback queue. An optional monitor server mirrors
// the session to WebSocket clients.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/voxkit/go-live/internal/config"
	"github.com/voxkit/go-live/internal/log"
	"github.com/voxkit/go-live/pkg/bridge"
	"github.com/voxkit/go-live/pkg/live"
	"github.com/voxkit/go-live/pkg/playback"
	"github.com/voxkit/go-live/pkg/wire"
)

var (
	version  = "1.0.0"
	model    = flag.String("model", "", "model identifier (default from LIVE_MODEL)")
	voice    = flag.String("voice", "", "voice name (default from LIVE_VOICE)")
	system   = flag.String("system", "", "system instruction")
	textOnly = flag.Bool("text-only", false, "request text responses, skip audio playback")
	monitor  = flag.String("monitor", "", "monitor server address, e.g. :8080 (disabled when empty)")
	logLevel = flag.String("log-level", "info", "log level: debug, info, warn, error")
)

func main() {
	godotenv.Load()
	flag.Parse()
	log.Init(*logLevel)

	apiKey := config.APIKeyRequired()
	if *model == "" {
		*model = config.Model()
	}
	if *voice == "" {
		*voice = config.Voice()
	}

	fmt.Println()
	fmt.Println("🎙  livechat v" + version)
	fmt.Println("   model:", *model)
	fmt.Println()

	// Optional monitor hub.
	var hub *bridge.Hub
	if *monitor != "" {
		hub = bridge.NewHub(log.With("component", "bridge"))
		app := fiber.New(fiber.Config{
			AppName:               "livechat-monitor",
			DisableStartupMessage: true,
		})
		app.Use(recover.New())
		hub.RegisterRoutes(app)
		hub.RegisterAPIRoutes(app.Group("/api"))
		app.Get("/health", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"status": "ok", "version": version})
		})
		go func() {
			if err := app.Listen(*monitor); err != nil {
				log.Error("monitor server stopped", "error", err)
			}
		}()
		defer app.Shutdown()
		log.Info("monitor listening", "addr", *monitor)
	}

	// Playback queue, unless running text-only.
	var queue *playback.Queue
	if !*textOnly {
		store, err := playback.NewDiskStore("")
		if err != nil {
			log.Error("playback store unavailable", "error", err)
			os.Exit(1)
		}
		queue = playback.NewQueue(store, &playback.GstPlayer{},
			playback.WithQueueLogger(log.With("component", "playback")),
			playback.WithOnActive(func(active bool) {
				if hub != nil {
					hub.PublishAudioActivity(active)
				}
			}))
		defer queue.Close()
	}

	modalities := []string{"AUDIO"}
	if *textOnly {
		modalities = []string{"TEXT"}
	}

	cfg := live.Config{
		APIKey: apiKey,
		Host:   config.Host(),
		Model:  *model,
		GenerationConfig: &wire.GenerationConfig{
			ResponseModalities: modalities,
			SpeechConfig: &wire.SpeechConfig{
				VoiceConfig: &wire.VoiceConfig{
					PrebuiltVoiceConfig: &wire.PrebuiltVoiceConfig{VoiceName: *voice},
				},
			},
		},
		SystemInstruction: *system,
	}

	handlers := &live.Handlers{
		OnOpen: func() {
			fmt.Println("connected. type a message, or /quit to exit.")
			if hub != nil {
				hub.PublishStatus(live.StatusOpen.String())
			}
		},
		OnClose: func(code int, reason string) {
			log.Info("session closed", "code", code, "reason", reason)
			if hub != nil {
				hub.PublishClose(code, reason)
			}
		},
		OnError: func(err error) {
			log.Error("session error", "error", err)
			if hub != nil {
				hub.PublishError(err)
			}
		},
		OnContent: func(content wire.ServerContent) {
			if text := content.Text(); text != "" {
				fmt.Print(text)
				if hub != nil {
					hub.PublishTranscript("model", text)
				}
			}
		},
		OnTurnComplete: func() {
			fmt.Println()
			fmt.Print("> ")
		},
		OnInterrupted: func() {
			if queue != nil {
				queue.Flush()
			}
		},
		OnAudio: func(pcm []byte) {
			if queue == nil {
				return
			}
			if err := queue.Enqueue(pcm); err != nil {
				log.Warn("audio chunk dropped", "error", err)
			}
		},
		OnLog: func(entry live.LogEntry) {
			if hub != nil {
				hub.PublishLog(entry.Category, entry.Message)
			}
		},
	}

	client, err := live.NewClient(cfg, handlers)
	if err != nil {
		log.Error("invalid session config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nshutting down")
		client.Disconnect()
		cancel()
	}()

	if err := client.Connect(ctx); err != nil {
		log.Error("connect failed", "error", err)
		os.Exit(1)
	}
	defer client.Disconnect()

	runPrompt(client, hub)
}

// runPrompt reads stdin lines and sends each as one user turn.
func runPrompt(client *live.Client, hub *bridge.Hub) {
	fmt.Print("> ")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			fmt.Print("> ")
			continue
		case line == "/quit", line == "/exit":
			return
		}

		if !client.IsOpen() {
			fmt.Println("session is closed")
			return
		}
		if hub != nil {
			hub.PublishTranscript("user", line)
		}
		client.Send([]wire.Part{wire.TextPart(line)}, true)
	}
}
