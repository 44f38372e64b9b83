package main

import (
	"bytes"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"facemark/internal/attendance"
	"facemark/internal/config"
	"facemark/internal/queue"
	"facemark/internal/report"
	"facemark/internal/settings"
	"facemark/internal/store"
)

// The worker drains the record queue and writes per-record CSV backups to
// object storage when backups are enabled in settings. It shares no state
// with the API process beyond redis and the database.
func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()
	repo := attendance.NewRepository(db.Client)

	redisClient := store.NewRedis(cfg.RedisAddr)
	settingsStore := settings.NewStore(redisClient.Client)

	media, err := store.NewMedia(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("minio init failed: %v", err)
	}
	if err := media.EnsureBucket(ctx); err != nil {
		log.Printf("warning: minio bucket not ready: %v", err)
	}

	q := queue.NewRedisQueue(redisClient.Client, "facemark:records")
	msgs, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume failed: %v", err)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down worker...")
		cancel()
	}()

	log.Println("Worker started, waiting for records")
	for {
		select {
		case <-ctx.Done():
			log.Println("Worker exited")
			return
		case msg, ok := <-msgs:
			if !ok {
				log.Println("Queue closed, worker exited")
				return
			}
			if msg.Type != "record" {
				log.Printf("skipping message type %q", msg.Type)
				continue
			}
			if err := backupRecord(ctx, repo, settingsStore, media, string(msg.Body)); err != nil {
				log.Printf("backup failed for record %s: %v", msg.Body, err)
			}
		}
	}
}

func backupRecord(ctx context.Context, repo *attendance.Repository, settingsStore *settings.Store, media *store.Media, rawID string) error {
	st, err := settingsStore.Load(ctx)
	if err != nil {
		return err
	}
	if !st.Backup.Enabled {
		return nil
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return err
	}
	rec, err := repo.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	students, err := repo.ListStudents(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, []attendance.Record{rec}, students); err != nil {
		return err
	}
	if err := media.SaveBackup(ctx, st.Backup.Prefix, report.BackupName(rec), buf.Bytes()); err != nil {
		return err
	}
	log.Printf("backed up record %s", id)
	return nil
}
