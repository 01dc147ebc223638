package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"taskpad/internal/email"
	"taskpad/internal/httpapi"
	"taskpad/internal/notify"
	"taskpad/internal/queue"
	"taskpad/internal/store"
	"taskpad/internal/tasks"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	st, err := store.NewDynamoStore(ctx)
	if err != nil {
		log.Fatal("failed to init dynamo store:", err)
	}
	repo := tasks.NewRepository(st)

	// Email is optional for the CRUD surface; without it only
	// /notify/overdue reports a configuration error.
	var sender email.Sender
	if awsCfg, err := awsconfig.LoadDefaultConfig(ctx); err != nil {
		log.Println("api: load aws cfg for ses:", err)
	} else if s, err := email.NewSESSender(awsCfg); err != nil {
		log.Println("api: ses sender disabled:", err)
	} else {
		sender = s
	}

	notifier := notify.NewNotifier(repo, sender, os.Getenv("NOTIFY_TO_EMAIL"))

	app := &httpapi.App{
		Repo:         repo,
		Notifier:     notifier,
		DefaultOwner: getenv("USER_ID", "me"),
	}

	// Optional change-event feed
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		topic := getenv("KAFKA_TOPIC_CHANGES", "taskpad-changes")
		prod := queue.NewProducer(brokers, topic)
		defer prod.Close()
		app.Events = prod
		log.Println("api: change events enabled topic=", topic)
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-User-Sub"},
	}))

	httpapi.RegisterRoutes(r, app)

	addr := ":" + getenv("PORT", "8080")
	log.Println("API listening on", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
