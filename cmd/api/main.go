package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vendorhub.org/internal/auth"
	"vendorhub.org/internal/docaccess"
	"vendorhub.org/internal/filestore"
	"vendorhub.org/internal/httpapi"
	"vendorhub.org/internal/notify"
	"vendorhub.org/internal/obs"
	"vendorhub.org/internal/store/pg"
	"vendorhub.org/internal/supplier"
)

var version = "0.3.1"

func main() {
	obs.Init()

	secret := os.Getenv("VENDORHUB_AUTH_SECRET")
	if secret == "" {
		log.Fatal("VENDORHUB_AUTH_SECRET is required")
	}
	dsn := os.Getenv("VENDORHUB_PG_DSN")
	if dsn == "" {
		log.Fatal("VENDORHUB_PG_DSN is required")
	}
	addr := os.Getenv("VENDORHUB_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	docDir := os.Getenv("VENDORHUB_DOC_DIR")
	if docDir == "" {
		docDir = "data/documents"
	}

	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	files, err := filestore.New(docDir, supplier.MaxDocumentBytes)
	if err != nil {
		log.Fatalf("filestore: %v", err)
	}

	var mailer notify.Mailer = notify.LogMailer{}
	if smtpAddr := os.Getenv("VENDORHUB_SMTP_ADDR"); smtpAddr != "" {
		mailer, err = notify.NewSMTPMailer(
			smtpAddr,
			os.Getenv("VENDORHUB_SMTP_FROM"),
			os.Getenv("VENDORHUB_SMTP_USER"),
			os.Getenv("VENDORHUB_SMTP_PASSWORD"),
		)
		if err != nil {
			log.Fatalf("smtp mailer: %v", err)
		}
	}
	dispatcher := notify.NewDispatcher(mailer, 0)

	accounts, err := auth.NewAccounts(store)
	if err != nil {
		log.Fatalf("accounts: %v", err)
	}
	sessions, err := auth.NewSessions(secret)
	if err != nil {
		log.Fatalf("sessions: %v", err)
	}
	suppliers, err := supplier.NewService(store, store,
		supplier.WithNotifier(dispatcher),
		supplier.WithBlobRemover(files),
	)
	if err != nil {
		log.Fatalf("supplier service: %v", err)
	}
	tokens, err := docaccess.NewIssuer(secret)
	if err != nil {
		log.Fatalf("doc token issuer: %v", err)
	}
	gate, err := docaccess.NewGate(tokens, store)
	if err != nil {
		log.Fatalf("doc gate: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: store.DB()}, version, httpapi.Deps{
		Accounts:  accounts,
		Sessions:  sessions,
		Suppliers: suppliers,
		Tokens:    tokens,
		Gate:      gate,
		Files:     files,
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	go dispatcher.Run(workerCtx)

	log.Printf("Starting vendorhub-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	stopWorker()
	_ = store.Close()
	log.Println("Stopped")
}
