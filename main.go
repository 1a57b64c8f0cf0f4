// Command chalet-notifier watches chalet vacancy pages and recreation.gov
// campgrounds and emails each vacancy once per recipient.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"chalet-notifier/campground"
	"chalet-notifier/config"
	"chalet-notifier/email"
	"chalet-notifier/ledger"
	"chalet-notifier/poll"
	"chalet-notifier/scraper"
)

func main() {
	ctx := context.Background()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	settings, err := config.Load(logger)
	if err != nil {
		logger.Error("Configuration invalid", "error", err)
		os.Exit(1)
	}
	e := settings.Env

	// Spreadsheet-backed variant: the run inputs live in named ranges.
	if e.ConfigSheetID != "" {
		service, err := sheetsService(ctx, e)
		if err != nil {
			logger.Error("Failed to initialize Sheets service", "error", err)
			os.Exit(1)
		}
		run, err := config.LoadRunFromSheet(ctx, service, e.ConfigSheetID, logger)
		if err != nil {
			logger.Error("Failed to load configuration sheet", "error", err)
			os.Exit(1)
		}
		settings.Run = run
	}

	if len(settings.Run.ParkIDs) > 0 && e.CheckerCommand == "" {
		logger.Error("PARK_IDS configured but CAMPGROUND_CHECKER not set")
		os.Exit(1)
	}

	store, err := buildStore(ctx, e, logger)
	if err != nil {
		logger.Error("Failed to initialize ledger store", "error", err)
		os.Exit(1)
	}

	provider, err := buildProvider(ctx, e, logger)
	if err != nil {
		logger.Error("Failed to initialize mail provider", "error", err)
		os.Exit(1)
	}

	monitor := poll.New(
		settings.Run,
		scraper.New(&http.Client{Timeout: 30 * time.Second}, logger),
		campground.New(e.CheckerCommand, campground.ExecRunner{}, logger),
		campground.OfferURL,
		ledger.New(store, logger),
		email.New(provider, logger),
		logger,
	)

	if err := monitor.Run(ctx); err != nil {
		logger.Error("Monitor stopped", "error", err)
		os.Exit(1)
	}
}

func buildStore(ctx context.Context, e config.Environment, logger *slog.Logger) (ledger.Store, error) {
	switch e.LedgerBackend {
	case "records":
		localPath := e.LocalStorage
		if e.StorageBucket == "" && localPath == "" {
			localPath = "./data"
			logger.Info("No STORAGE_BUCKET set, defaulting to local record storage", "storage_path", localPath)
		}
		if localPath != "" {
			if err := os.MkdirAll(localPath, 0o755); err != nil {
				return nil, err
			}
			return ledger.NewRecordStore(nil, "", localPath, logger), nil
		}
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		return ledger.NewRecordStore(client, e.StorageBucket, "", logger), nil

	case "sheets":
		service, err := sheetsService(ctx, e)
		if err != nil {
			return nil, err
		}
		return ledger.NewSheetsStore(service, e.SheetID, e.SheetRange, logger), nil

	default:
		logger.Info("Using in-memory ledger; notified state will not survive a restart")
		return ledger.NewMemoryStore(), nil
	}
}

func buildProvider(ctx context.Context, e config.Environment, logger *slog.Logger) (email.Provider, error) {
	switch e.EmailProvider {
	case "gmail":
		service, err := gmailService(ctx, e)
		if err != nil {
			return nil, err
		}
		return email.NewGmailProvider(service, logger), nil
	case "mock":
		logger.Info("Mock email mode enabled")
		return email.NewMockProvider(logger), nil
	default:
		return email.NewSMTPProvider(e.SMTPHost, e.SMTPPort, e.EmailUser, e.EmailPass, logger), nil
	}
}

func gmailService(ctx context.Context, e config.Environment) (*gmail.Service, error) {
	if e.GoogleCredentialsJSON != "" {
		return gmail.NewService(ctx, option.WithCredentialsJSON([]byte(e.GoogleCredentialsJSON)))
	}

	// OAuth2 refresh-token credential for a regular Gmail account.
	conf := &oauth2.Config{
		ClientID:     e.GmailClientID,
		ClientSecret: e.GmailClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailSendScope},
	}
	source := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: e.GmailRefreshToken})
	return gmail.NewService(ctx, option.WithTokenSource(source))
}

func sheetsService(ctx context.Context, e config.Environment) (*sheets.Service, error) {
	if e.GoogleCredentialsJSON != "" {
		return sheets.NewService(ctx, option.WithCredentialsJSON([]byte(e.GoogleCredentialsJSON)))
	}
	// Application Default Credentials when deployed on GCP.
	return sheets.NewService(ctx)
}
