package handler_test

import (
	"context"

	"cadence.app/outreach/internal/scheduler"
)

type mockScheduler struct {
	startFn  func(ctx context.Context) error
	stopFn   func(ctx context.Context) error
	statusFn func(ctx context.Context) (*scheduler.Status, error)
}

func (m *mockScheduler) Start(ctx context.Context) error {
	if m.startFn != nil {
		return m.startFn(ctx)
	}
	return nil
}

func (m *mockScheduler) Stop(ctx context.Context) error {
	if m.stopFn != nil {
		return m.stopFn(ctx)
	}
	return nil
}

func (m *mockScheduler) Status(ctx context.Context) (*scheduler.Status, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx)
	}
	return &scheduler.Status{}, nil
}
