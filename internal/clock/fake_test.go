package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	c := Fake(epoch)
	ch := c.After(150 * time.Millisecond)
	assert.Equal(t, 1, c.Pending())

	c.Advance(100 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}

	c.Advance(50 * time.Millisecond)
	select {
	case got := <-ch:
		assert.Equal(t, epoch.Add(150*time.Millisecond), got)
	default:
		t.Fatal("did not fire")
	}
	assert.Zero(t, c.Pending())
}

func TestFakeAfterNonPositive(t *testing.T) {
	c := Fake(epoch)
	select {
	case got := <-c.After(0):
		assert.Equal(t, epoch, got)
	default:
		t.Fatal("zero duration should fire immediately")
	}
}

func TestWaitForTimers(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-c.After(time.Second)
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.Fail(t, "waiter never released")
	}
}

func TestAbandonedWaiterPersistsUntilDeadline(t *testing.T) {
	c := Fake(epoch)
	_ = c.After(time.Second) // receiver never reads
	c.After(2 * time.Second)
	assert.Equal(t, 2, c.Pending())

	c.Advance(time.Second)
	assert.Equal(t, 1, c.Pending(), "fired waiter dropped without a receiver")
	c.WaitForTimers(1)
}
