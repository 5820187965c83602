// Command event-producer emits synthetic gamification events to Kafka
// for load testing the scoring pipeline.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/brokerhub/gamification/internal/domain"
)

var brokerNames = []string{
	"Alice", "Bruno", "Carla", "Diego", "Elena", "Felipe", "Gabriela", "Hugo", "Isabela", "Joao",
	"Karina", "Lucas", "Mariana", "Nicolas", "Olivia", "Pedro", "Quintino", "Rafaela", "Sofia", "Thiago",
}

func brokerID(idx int) string {
	nameIdx := idx % len(brokerNames)
	suffix := idx/len(brokerNames) + 1
	return fmt.Sprintf("%s%d", strings.ToLower(brokerNames[nameIdx]), suffix)
}

var dealStages = []domain.DealStage{
	domain.StageInitialContact,
	domain.StageVisit,
	domain.StageProposal,
	domain.StageClosing,
}

func randomEvent(totalBrokers int) domain.Event {
	userID := brokerID(rand.Intn(totalBrokers))
	now := time.Now()

	switch rand.Intn(3) {
	case 0:
		// Completed activity, on time roughly two thirds of the time
		due := now.Add(time.Duration(rand.Intn(48)) * time.Hour)
		completed := now
		if rand.Intn(3) == 0 {
			completed = due.Add(time.Duration(rand.Intn(24)+1) * time.Hour)
		}
		return domain.Event{
			UserID:      userID,
			Type:        domain.EventActivityCompleted,
			OccurredAt:  now,
			ActivityID:  uuid.New().String(),
			DueDate:     due,
			CompletedAt: completed,
		}

	case 1:
		fromIdx := rand.Intn(len(dealStages) - 1)
		return domain.Event{
			UserID:     userID,
			Type:       domain.EventDealStageChanged,
			OccurredAt: now,
			DealID:     uuid.New().String(),
			FromStage:  dealStages[fromIdx],
			ToStage:    dealStages[fromIdx+1],
		}

	default:
		return domain.Event{
			UserID:     userID,
			Type:       domain.EventMessageSent,
			OccurredAt: now,
		}
	}
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "gamification-events", "Kafka topic")
	totalBrokers := flag.Int("users", 50, "Number of distinct broker user ids")
	eventsPerSecond := flag.Int("rate", 20, "Events per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("Gamification event producer")
	fmt.Printf("  Brokers:     %s\n", *brokers)
	fmt.Printf("  Topic:       %s\n", *topic)
	fmt.Printf("  Users:       %d\n", *totalBrokers)
	fmt.Printf("  Events/sec:  %d\n", *eventsPerSecond)
	fmt.Println()

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	// Create producer
	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	// Keyed by user id so per-user ordering survives partitioning
	sendEvent := func(event domain.Event) {
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("Failed to marshal event: %v", err)
			return
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(event.UserID),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
			return
		}
	}

	shutdown := func() {
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\nCompleted. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	interval := time.Second / time.Duration(*eventsPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var eventCount int64

	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	for {
		select {
		case <-sigChan:
			fmt.Println("\nShutting down...")
			shutdown()
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				fmt.Println("\nDuration reached, shutting down...")
				shutdown()
				return
			}

			sendEvent(randomEvent(*totalBrokers))
			atomic.AddInt64(&eventCount, 1)

		case <-statsTicker.C:
			fmt.Printf("[%s] Events: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&eventCount),
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}
