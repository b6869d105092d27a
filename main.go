package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/juju/clock"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	streakDB "github.com/mldchan/fedistreaks/db"
	"github.com/mldchan/fedistreaks/misskey"
	"github.com/mldchan/fedistreaks/streaks"
)

const defaultPort = "8080"

const (
	scanSchedule       = "@every 30s"
	followBackSchedule = "@every 5m"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("File .env not found!")
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			TracesSampleRate: 1.0,
		}); err != nil {
			log.Fatalf("sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	conn := DB()
	defer conn.Close()

	api := misskey.New(mustGetenv("INSTANCE"), mustGetenv("TOKEN"))
	store := streakDB.NewStore(conn)
	reporter := sentryReporter{}

	scanner := streaks.NewScanner(store, api, clock.WallClock, reporter, scanWorkers())
	followBack := streaks.NewFollowBack(api, reporter)

	c := cron.New(cron.WithSeconds())
	c.AddFunc(scanSchedule, func() {
		if err := scanner.Run(context.Background()); err != nil {
			log.Printf("Scan cycle failed: %v", err)
			sentry.CaptureException(err)
		}
	})
	c.AddFunc(followBackSchedule, func() {
		if err := followBack.Run(context.Background()); err != nil {
			log.Printf("Follow back cycle failed: %v", err)
		}
	})
	c.Start()

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	srv := newStatusServer(store, conn, port)
	go func() {
		log.Printf("Status server listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down")
	<-c.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

// DB gets a connection pool to the database.
// This can panic for malformed database connection strings, invalid credentials, or non-existance database instance.
func DB() *sql.DB {
	var (
		host     = mustGetenv("POSTGRES_HOST")
		port     = mustGetenv("POSTGRES_PORT")
		dbName   = mustGetenv("POSTGRES_DB")
		user     = mustGetenv("POSTGRES_USER")
		password = mustGetenv("POSTGRES_PASSWORD")
	)

	dbURI := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, dbName)
	conn, err := sql.Open("postgres", dbURI)
	if err != nil {
		panic(fmt.Sprintf("DB: %v", err))
	}

	if err := conn.Ping(); err != nil {
		panic(fmt.Sprintf("DB: %v", err))
	}

	return conn
}

func mustGetenv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Panicf("%s environment variable not set.", k)
	}
	return v
}

func scanWorkers() int {
	v := os.Getenv("SCAN_WORKERS")
	if v == "" {
		return streaks.DefaultWorkers
	}

	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Panicf("SCAN_WORKERS must be a positive number, got %q.", v)
	}
	return n
}

// sentryReporter adapts the sentry hub to the streaks.Reporter contract.
type sentryReporter struct{}

func (sentryReporter) CaptureException(err error) {
	sentry.CaptureException(err)
}
