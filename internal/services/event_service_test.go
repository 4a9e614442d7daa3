package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/isdelr/lms-be/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRecentEventsDefaultLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewEventService(memory.New())
	tick := fixedNow
	svc.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	for i := 0; i < defaultEventLimit+5; i++ {
		require.NoError(t, svc.CreateEvent(ctx, "course.update", "info", fmt.Sprintf("update %d", i), ptr("c1"), nil))
	}

	events, err := svc.GetRecentEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, defaultEventLimit)
	assert.Equal(t, fmt.Sprintf("update %d", defaultEventLimit+4), events[0].Message)

	events, err = svc.GetRecentEvents(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestRecordEventNilProvider(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		recordEvent(context.Background(), nil, "x", "info", "msg", nil, nil)
	})
}
