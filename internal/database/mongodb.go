package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	clientOpts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// Retry controls ConnectWithRetry. The wait doubles after every failed
// attempt.
type Retry struct {
	Attempts int
	Backoff  time.Duration
	// OnFailure is called after each failed attempt, if set.
	OnFailure func(attempt int, err error)
}

// ConnectWithRetry calls ConnectMongo until it succeeds, the attempts run out
// or ctx is cancelled. It tolerates startup races with the database container.
func ConnectWithRetry(ctx context.Context, uri string, timeout time.Duration, r Retry) (*mongo.Client, error) {
	if r.Attempts < 1 {
		r.Attempts = 1
	}
	backoff := r.Backoff
	var lastErr error
	for attempt := 1; attempt <= r.Attempts; attempt++ {
		client, err := ConnectMongo(ctx, uri, timeout)
		if err == nil {
			return client, nil
		}
		lastErr = err
		if r.OnFailure != nil {
			r.OnFailure(attempt, err)
		}
		if attempt == r.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("after %d attempts: %w", r.Attempts, lastErr)
}
