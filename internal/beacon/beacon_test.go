package beacon_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/relabs-tech/sms_beacon/internal/beacon"
	"github.com/relabs-tech/sms_beacon/internal/beacon/mocks"
	"github.com/relabs-tech/sms_beacon/internal/snapshot"
)

type staticFormatter string

func (f staticFormatter) Message(time.Time) string { return string(f) }

func hasText(text string) gomock.Matcher {
	return gomock.Cond(func(x any) bool {
		m, ok := x.(beacon.Message)
		return ok && m.Text == text
	})
}

func TestFire_DeliversToEverySink(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := mocks.NewMockSink(ctrl)
	second := mocks.NewMockSink(ctrl)
	log, _ := test.NewNullLogger()

	gomock.InOrder(
		first.EXPECT().Deliver(gomock.Any(), hasText("hello;")).Return(nil),
		second.EXPECT().Deliver(gomock.Any(), hasText("hello;")).Return(nil),
	)

	b := beacon.New(staticFormatter("hello;"), time.Hour, 0, log, first, second)
	msg := b.Fire(context.Background())

	assert.Equal(t, "hello;", msg.Text)
	assert.NotEqual(t, [16]byte{}, [16]byte(msg.ID))
	assert.WithinDuration(t, time.Now(), msg.SentAt, time.Second)
}

func TestFire_SinkErrorDoesNotStopOthers(t *testing.T) {
	ctrl := gomock.NewController(t)
	failing := mocks.NewMockSink(ctrl)
	working := mocks.NewMockSink(ctrl)
	log, hook := test.NewNullLogger()

	failing.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(errors.New("radio off"))
	working.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(nil)

	beacon.New(staticFormatter("x;"), time.Hour, 0, log, failing, working).Fire(context.Background())

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "beacon delivery failed", hook.LastEntry().Message)
}

func TestFire_UsesRecordMessage(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)
	log, _ := test.NewNullLogger()

	sink.EXPECT().Deliver(gomock.Any(), gomock.Cond(func(x any) bool {
		m := x.(beacon.Message)
		return m.Text == snapshot.New().Message(m.SentAt)
	})).Return(nil)

	beacon.New(snapshot.New(), time.Hour, 0, log, sink).Fire(context.Background())
}

func TestRun_FiresImmediatelyThenPeriodically(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)
	log, _ := test.NewNullLogger()

	var fired atomic.Int32
	sink.EXPECT().Deliver(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, beacon.Message) error {
		fired.Add(1)
		return nil
	}).MinTimes(3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	b := beacon.New(staticFormatter("x;"), 20*time.Millisecond, 0, log, sink)
	start := time.Now()
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool { return fired.Load() >= 1 }, time.Second, time.Millisecond)
	assert.Less(t, time.Since(start), 20*time.Millisecond*5, "first message without waiting a period")

	require.Eventually(t, func() bool { return fired.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestRun_InitialDelayCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl) // no calls expected
	log, _ := test.NewNullLogger()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := beacon.New(staticFormatter("x;"), time.Millisecond, time.Hour, log, sink).Run(ctx)
	assert.NoError(t, err)
}
