package config

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

// StockMovementMessage is the event published to the order-management side
// after a committed inventory movement (adjustment or import chunk).
type StockMovementMessage struct {
	BusinessId    string    `json:"business_id"`
	MovementType  string    `json:"movement_type"`
	Sku           string    `json:"sku,omitempty"`
	Quantity      int64     `json:"quantity,omitempty"`
	Reference     string    `json:"reference,omitempty"`
	RowCount      int       `json:"row_count,omitempty"`
	PerformedBy   string    `json:"performed_by"`
	PerformedAt   time.Time `json:"performed_at"`
	CorrelationId string    `json:"correlation_id"`
}

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

func init() {
	godotenv.Load()
}

func getPubSubProjectID() string {
	// Prefer explicit override.
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	// Cloud Run/Cloud Functions often set this.
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	if v := os.Getenv("GCP_PROJECT"); v != "" {
		return v
	}
	return ""
}

func getPubSubClient(c context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubClient != nil {
		return pubsubClient, nil
	}

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	var (
		client *pubsub.Client
		err    error
	)
	if credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON"); credJSON != "" {
		client, err = pubsub.NewClient(c, projectID, option.WithCredentialsJSON([]byte(credJSON)))
	} else {
		// Uses Application Default Credentials (Cloud Run service account or GOOGLE_APPLICATION_CREDENTIALS).
		client, err = pubsub.NewClient(c, projectID)
	}
	if err != nil {
		return nil, err
	}
	pubsubClient = client
	return pubsubClient, nil
}

func stockMovementTopicID() string {
	if v := os.Getenv("STOCK_MOVEMENTS_TOPIC"); v != "" {
		return v
	}
	return "stock-movements"
}

// PublishStockMovement publishes a stock-movement event. Best-effort:
// callers log the returned error and never fail the request on it.
func PublishStockMovement(c context.Context, msg *StockMovementMessage) error {
	if !PublishStockEvents() {
		return nil
	}
	client, err := getPubSubClient(c)
	if err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	topic := client.Topic(stockMovementTopicID())
	defer topic.Stop()

	pubCtx, cancel := context.WithTimeout(c, 10*time.Second)
	defer cancel()
	result := topic.Publish(pubCtx, &pubsub.Message{Data: data})
	_, err = result.Get(pubCtx)
	return err
}
