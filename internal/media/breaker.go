// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package media

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/zondarr/zondarr/internal/logging"
	"github.com/zondarr/zondarr/internal/metrics"
)

// Ensure BreakerClient implements Client.
var _ Client = (*BreakerClient)(nil)

// BreakerClient wraps a Client with a circuit breaker so a dead or slow
// media server cannot pile up requests. ErrRemoteNotFound and
// ErrUnauthorized pass through without counting as breaker failures:
// they are definitive answers from a healthy server.
type BreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewBreakerClient wraps client in a circuit breaker named after the
// server. Opens after a 60% failure rate across at least 10 requests,
// probes again after 2 minutes.
func NewBreakerClient(name string, client Client) *BreakerClient {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerFailures.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening media server circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Media server circuit state change")
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return errors.Is(err, ErrRemoteNotFound) || errors.Is(err, ErrUnauthorized)
		},
	})

	return &BreakerClient{client: client, cb: cb, name: name}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

func (b *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	v, err := b.cb.Execute(fn)
	if err != nil {
		metrics.CircuitBreakerFailures.WithLabelValues(b.name).Inc()
	}
	return v, err
}

func (b *BreakerClient) Ping(ctx context.Context) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.client.Ping(ctx)
	})
	return err
}

func (b *BreakerClient) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	v, err := b.execute(func() (interface{}, error) {
		return b.client.ServerInfo(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ServerInfo), nil
}

func (b *BreakerClient) Libraries(ctx context.Context) ([]RemoteLibrary, error) {
	v, err := b.execute(func() (interface{}, error) {
		return b.client.Libraries(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]RemoteLibrary), nil
}

func (b *BreakerClient) Users(ctx context.Context) ([]RemoteUser, error) {
	v, err := b.execute(func() (interface{}, error) {
		return b.client.Users(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]RemoteUser), nil
}

func (b *BreakerClient) CreateUser(ctx context.Context, req NewUserRequest) (*RemoteUser, error) {
	v, err := b.execute(func() (interface{}, error) {
		return b.client.CreateUser(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*RemoteUser), nil
}

func (b *BreakerClient) UpdateUserPolicy(ctx context.Context, externalID string, policy UserPolicy) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.client.UpdateUserPolicy(ctx, externalID, policy)
	})
	return err
}

func (b *BreakerClient) SetEnabled(ctx context.Context, externalID string, enabled bool) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.client.SetEnabled(ctx, externalID, enabled)
	})
	return err
}

func (b *BreakerClient) DeleteUser(ctx context.Context, externalID string) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.client.DeleteUser(ctx, externalID)
	})
	return err
}
