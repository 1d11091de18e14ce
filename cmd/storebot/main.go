package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/nexshop/storebot/internal/config"
	"github.com/nexshop/storebot/internal/httpapi"
	"github.com/nexshop/storebot/internal/intel"
	"github.com/nexshop/storebot/internal/notify"
	"github.com/nexshop/storebot/internal/pipeline"
	"github.com/nexshop/storebot/internal/session"
	"github.com/nexshop/storebot/internal/store"
	"github.com/nexshop/storebot/internal/storectx"
)

var rootCmd = &cobra.Command{
	Use:   "storebot",
	Short: "storebot - multi-tenant store messaging assistant",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the messaging core (sessions + pipeline + notifications + API)",
	RunE:  runServe,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config directory",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tenant session status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(serveCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("[main] close store: %v", err)
		}
	}()

	client, err := intel.New(cfg.Provider)
	if err != nil {
		return fmt.Errorf("create intelligence client: %w", err)
	}

	provider := storectx.NewProvider(st)
	resolver := pipeline.NewResolver(st, provider, client)

	mgr := session.NewManager(
		session.NewWhatsAppFactory(cfg.WhatsApp),
		st,
		resolver,
		time.Duration(cfg.WhatsApp.PairingTimeoutSecs)*time.Second,
		time.Duration(cfg.WhatsApp.SendTimeoutSecs)*time.Second,
	)
	defer mgr.Shutdown()

	loc, err := notify.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return err
	}

	var telegram notify.TelegramBot
	if cfg.Telegram.Enabled {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("init telegram bot: %w", err)
		}
		telegram = bot
	}

	dispatcher := notify.NewDispatcher(st, mgr, telegram, nil, loc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	campaigns := notify.NewCampaignService(st, dispatcher)
	if err := campaigns.Start(ctx); err != nil {
		log.Printf("[main] campaign start warning: %v", err)
	}
	defer campaigns.Stop()

	api := httpapi.NewServer(cfg.HTTP.Host, cfg.HTTP.Port, mgr, st, httpapi.AllowAll{})
	if err := api.Start(); err != nil {
		return fmt.Errorf("start http api: %w", err)
	}
	defer func() {
		if err := api.Stop(); err != nil {
			log.Printf("[main] stop http api: %v", err)
		}
	}()

	log.Printf("[main] storebot running on %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("[main] shutting down...")
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(config.ConfigPath()); err == nil {
		fmt.Printf("config already exists at %s\n", config.ConfigPath())
		return nil
	}

	if err := config.SaveConfig(config.DefaultConfig()); err != nil {
		return err
	}
	fmt.Printf("wrote starter config to %s\n", config.ConfigPath())
	fmt.Println("set provider.apiKey (or STOREBOT_API_KEY) before running serve")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	tenants, err := st.ListTenants()
	if err != nil {
		return err
	}
	if len(tenants) == 0 {
		fmt.Println("no tenants registered")
		return nil
	}

	for _, t := range tenants {
		status, err := st.SessionStatus(t.ID)
		if err != nil {
			status = session.StatusDisconnected
		}
		fmt.Printf("%-20s %-24s %s\n", t.ID, t.Name, status)
	}
	return nil
}
