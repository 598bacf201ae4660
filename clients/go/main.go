// santral is a console client for the santral voice chat relay.
package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/umiteyigun/santral-ai/clients/go/relay"
	"github.com/umiteyigun/santral-ai/internal/models"
	"github.com/umiteyigun/santral-ai/internal/rtc"
)

var (
	serverURL string
	debug     bool
	logger    zerolog.Logger
)

func main() {
	root := &cobra.Command{
		Use:   "santral",
		Short: "Console client for the santral voice chat relay",
		Long: `Follows the agent replies of a voice chat room. Replies arrive through
the mailbox poller and the realtime data channel and are shown once.
Type a message number and press enter to play its audio.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if debug {
				level = zerolog.DebugLevel
			}
			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				Level(level).
				With().
				Timestamp().
				Logger()
		},
		SilenceUsage: true,
	}

	defaultURL := os.Getenv("SANTRAL_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:3000"
	}
	root.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultURL, "relay server URL (env SANTRAL_URL)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(startCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(sipCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func startCmd() *cobra.Command {
	var name, player string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Provision a new voice chat and follow its replies",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := relay.NewClient(serverURL)
			session, err := client.StartChat(ctx, name)
			if err != nil {
				return err
			}
			fmt.Printf("Oda:       %s\n", session.RoomName)
			fmt.Printf("Sunucu:    %s\n", session.ServerURL)
			fmt.Printf("Token:     %s\n\n", session.Token)

			return follow(ctx, client, session.RoomName, true, newCommandPlayer(player))
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "participant name")
	cmd.Flags().StringVar(&player, "player", os.Getenv("SANTRAL_PLAYER"), "audio player command (env SANTRAL_PLAYER)")
	return cmd
}

func watchCmd() *cobra.Command {
	var room, player string
	var realtime bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the agent replies of an existing room",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return follow(ctx, relay.NewClient(serverURL), room, realtime, newCommandPlayer(player))
		},
	}
	cmd.Flags().StringVarP(&room, "room", "r", "", "room name")
	cmd.Flags().BoolVar(&realtime, "realtime", true, "also listen on the realtime data channel")
	cmd.Flags().StringVar(&player, "player", os.Getenv("SANTRAL_PLAYER"), "audio player command (env SANTRAL_PLAYER)")
	cmd.MarkFlagRequired("room")
	return cmd
}

func sendCmd() *cobra.Command {
	var room, text, userText, audioFile string
	var publish bool
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send an agent reply to a room, as the voice agent would",
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := models.Message{
				Type:      models.TypeAgentResponse,
				UserText:  userText,
				AgentText: text,
			}
			if audioFile != "" {
				audio, err := os.ReadFile(audioFile)
				if err != nil {
					return err
				}
				msg.AudioBase64 = base64.StdEncoding.EncodeToString(audio)
			}

			client := relay.NewClient(serverURL)
			if publish {
				resp, err := client.Publish(cmd.Context(), room, msg)
				if err != nil {
					return err
				}
				fmt.Printf("Published: %s\n", resp.ID)
				return nil
			}
			if err := client.Produce(cmd.Context(), room, msg); err != nil {
				return err
			}
			fmt.Println("Stored")
			return nil
		},
	}
	cmd.Flags().StringVarP(&room, "room", "r", "", "room name")
	cmd.Flags().StringVarP(&text, "text", "t", "", "agent reply text")
	cmd.Flags().StringVarP(&userText, "user-text", "u", "", "transcribed user utterance")
	cmd.Flags().StringVarP(&audioFile, "audio", "a", "", "WAV file to attach")
	cmd.Flags().BoolVar(&publish, "publish", false, "push on the data channel instead of the mailbox")
	cmd.MarkFlagRequired("room")
	return cmd
}

func sipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sip",
		Short: "Manage phone call routing on the media server",
	}
	cmd.AddCommand(sipSetupCmd())
	return cmd
}

func sipSetupCmd() *cobra.Command {
	var livekitURL, apiKey, apiSecret string
	setup := rtc.TrunkSetup{}
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the PBX trunk and a rule that gives every call its own room",
		RunE: func(cmd *cobra.Command, args []string) error {
			admin := lksdk.NewSIPClient(livekitURL, apiKey, apiSecret)
			res, err := rtc.SetupSIP(cmd.Context(), admin, setup)
			if err != nil {
				return err
			}
			fmt.Printf("Trunk:     %s\n", res.TrunkID)
			fmt.Printf("Kural:     %s\n", res.RuleID)
			return nil
		},
	}
	cmd.Flags().StringVar(&livekitURL, "livekit-url", envOr("LIVEKIT_URL", "http://localhost:7880"), "media server URL (env LIVEKIT_URL)")
	cmd.Flags().StringVar(&apiKey, "api-key", envOr("LIVEKIT_API_KEY", "devkey"), "media server API key (env LIVEKIT_API_KEY)")
	cmd.Flags().StringVar(&apiSecret, "api-secret", envOr("LIVEKIT_API_SECRET", "secret"), "media server API secret (env LIVEKIT_API_SECRET)")
	cmd.Flags().StringVar(&setup.TrunkName, "trunk-name", "PBX 1001", "trunk name")
	cmd.Flags().StringSliceVar(&setup.Numbers, "number", []string{"1001"}, "numbers the trunk answers")
	cmd.Flags().StringSliceVar(&setup.AllowedAddresses, "allow", nil, "PBX addresses or CIDRs allowed to call in")
	cmd.Flags().StringVar(&setup.RuleName, "rule-name", "Per-Call Room", "dispatch rule name")
	cmd.Flags().StringVar(&setup.RoomPrefix, "room-prefix", rtc.DefaultSIPRoomPrefix, "prefix of the room created for each call")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// follow polls and listens on room, redrawing the timeline until ctx ends.
func follow(ctx context.Context, client *relay.Client, room string, realtime bool, player relay.Player) error {
	timeline := relay.NewTimeline()
	renderer := relay.NewRenderer(timeline, player, logger)

	poller := relay.NewPoller(client, timeline, relay.WithPollerLogger(logger))
	poller.SetRoom(room)
	defer poller.Stop()

	if realtime {
		listener := relay.NewListener(client, timeline, logger)
		go listener.Run(ctx, room)
	}

	redraw := make(chan struct{}, 1)
	requestRedraw := func() {
		select {
		case redraw <- struct{}{}:
		default:
		}
	}

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			n, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
			if err != nil {
				continue
			}
			if renderer.Playing(n - 1) {
				continue
			}
			go func() {
				requestRedraw()
				err := renderer.Play(ctx, n-1)
				if errors.Is(err, relay.ErrAlreadyPlaying) {
					return
				}
				if err != nil {
					fmt.Fprintf(os.Stderr, "Çalınamadı: %v\n", err)
				}
				requestRedraw()
			}()
		}
	}()

	logger.Info().Str("room", room).Bool("realtime", realtime).Msg("waiting for agent replies")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timeline.Updates():
		case <-redraw:
		}
		fmt.Printf("\n── %s ──\n", room)
		renderer.Render(os.Stdout)
	}
}
