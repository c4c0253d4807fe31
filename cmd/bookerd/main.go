package main

import (
	"context"

	bookingvalidator "booker/internal/booking/validator"
	"booker/internal/server/events"
	"booker/internal/server/handler"
	"booker/internal/server/repository"
	"booker/internal/server/service"
	"booker/pkg/app"
	"booker/pkg/config"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load("bookerd")
	log := cfg.Log

	var repo repository.BookingRepository
	if cfg.MongoURI != "" {
		mongoRepo, err := repository.NewMongoRepository(
			context.Background(),
			cfg.MongoURI,
			cfg.MongoDatabaseName,
			cfg.MongoConnTimeout,
			cfg.MongoOpTimeout,
		)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB", "error", err, "uri", cfg.MongoURI)
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				log.Error("Failed to close MongoDB connection", "error", err)
			}
		}()
		repo = mongoRepo
		log.Info("Using MongoDB repository", "database", cfg.MongoDatabaseName)
	} else {
		repo = repository.NewMemoryRepository()
		log.Info("Using in-memory repository")
	}

	var publisher events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				log.Error("Failed to close Kafka writer", "error", err)
			}
		}()
		publisher = kafkaPublisher
		log.Info("Publishing booking events to Kafka", "topic", cfg.KafkaTopic)
	} else {
		publisher = events.NopPublisher{}
	}

	svc := service.NewBookingService(repo, bookingvalidator.New(log), publisher, log)
	h := handler.NewBookingHandler(svc, log)

	app.NewApplication(cfg, h).Run()
}
