package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAwaitStop_WaitsForConsumer(t *testing.T) {
	errCh := make(chan error, 1)
	stopped := make(chan struct{})
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(stopped)
		errCh <- context.Canceled
	}()

	assert.NoError(t, awaitStop(errCh, 2*time.Second))
	select {
	case <-stopped:
	default:
		t.Fatal("returned before the consumer stopped")
	}
}

func TestAwaitStop_ReportsFailure(t *testing.T) {
	errCh := make(chan error, 1)
	errCh <- errors.New("commit failed")
	assert.EqualError(t, awaitStop(errCh, time.Second), "commit failed")
}

func TestAwaitStop_GivesUpAfterGrace(t *testing.T) {
	assert.ErrorIs(t, awaitStop(make(chan error), 20*time.Millisecond), errStopTimeout)
}
