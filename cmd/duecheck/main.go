package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"taskpad/internal/email"
	"taskpad/internal/notify"
	"taskpad/internal/queue"
	"taskpad/internal/store"
	"taskpad/internal/tasks"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// duecheck runs the overdue scan. One-shot by default, which is what a
// cron/EventBridge schedule wants; -listen blocks on a Kafka trigger
// topic instead and scans once per message.
func main() {
	listen := flag.Bool("listen", false, "consume trigger messages instead of scanning once")
	flag.Parse()

	_ = godotenv.Load()
	ctx := context.Background()

	st, err := store.NewDynamoStore(ctx)
	if err != nil {
		log.Fatal("duecheck: init dynamo:", err)
	}
	repo := tasks.NewRepository(st)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal("duecheck: load aws cfg:", err)
	}
	sender, err := email.NewSESSender(awsCfg)
	if err != nil {
		log.Fatal("duecheck: init ses:", err)
	}

	notifier := notify.NewNotifier(repo, sender, os.Getenv("NOTIFY_TO_EMAIL"))
	defaultOwner := getenv("USER_ID", "me")

	if !*listen {
		res, err := notifier.Scan(ctx, defaultOwner)
		if err != nil {
			log.Fatal("duecheck: scan:", err)
		}
		log.Printf("duecheck: sent=%d targets=%d notified=%d", res.Sent, res.Targets, res.Notified)
		return
	}

	brokersCSV := getenv("KAFKA_BROKERS", "localhost:9092")
	topic := getenv("KAFKA_TOPIC_DUECHECK", "taskpad-duecheck")
	groupID := getenv("KAFKA_DUECHECK_GROUP", "taskpad-duecheck")

	consumer := queue.NewConsumer(splitCSV(brokersCSV), topic, groupID)
	defer consumer.Close()

	log.Println("duecheck: listening topic=", topic)

	for {
		tm, commit, err := consumer.ReadTrigger(ctx)
		if err != nil {
			log.Println("duecheck: read error:", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		owner := tm.OwnerID
		if owner == "" {
			owner = defaultOwner
		}

		res, err := notifier.Scan(ctx, owner)
		if err != nil {
			// don't commit; Kafka will redeliver and we'll retry
			log.Println("duecheck: scan error:", err)
			continue
		}
		log.Printf("duecheck: owner=%s sent=%d targets=%d notified=%d", owner, res.Sent, res.Targets, res.Notified)

		if err := commit(ctx); err != nil {
			log.Println("duecheck: commit error:", err)
		}
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
