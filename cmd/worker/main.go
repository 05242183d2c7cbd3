package main

import (
	"bytes"
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"facetrack/internal/attendance"
	"facetrack/internal/config"
	"facetrack/internal/facegate"
	"facetrack/internal/queue"
	"facetrack/internal/store"
)

// Worker consumes enrollment events, runs each stored photo through the face
// service, and flags persons whose photo yields no detectable face so the
// roster loader (and admins) can see bad enrollments.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "facetrack:events")
	}

	repo := attendance.NewRepository(db.Client)
	face := facegate.New(cfg.FaceServiceURL, cfg.FaceSkip)

	if !cfg.FaceSkip {
		if err := face.Health(ctx); err != nil {
			log.Printf("WARNING: face service not available: %v", err)
			log.Println("worker will retry verification when events arrive")
		} else {
			log.Println("face service connected")
		}
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != queue.TypeEnroll {
			continue
		}

		personID, err := strconv.ParseInt(string(msg.Body), 10, 64)
		if err != nil {
			log.Printf("bad enroll message body %q", string(msg.Body))
			continue
		}
		log.Printf("verifying enrollment photo for person %d", personID)

		photo, err := repo.PersonPhotoByID(ctx, personID)
		if err != nil {
			log.Printf("fetch photo for person %d failed: %v", personID, err)
			continue
		}

		faces, err := face.Detect(ctx, bytes.NewReader(photo), "enroll.jpg")
		if err != nil {
			log.Printf("face detection for person %d failed: %v", personID, err)
			continue
		}

		enrolled := len(faces) > 0 && len(faces[0].Descriptor) > 0
		if err := repo.SetFaceEnrolled(ctx, personID, enrolled); err != nil {
			log.Printf("flag person %d failed: %v", personID, err)
			continue
		}
		if enrolled {
			log.Printf("person %d: face verified", personID)
		} else {
			log.Printf("person %d: no detectable face in enrollment photo", personID)
		}
	}

	log.Println("worker stopped")
}
