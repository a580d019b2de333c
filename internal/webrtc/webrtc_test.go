package webrtc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionOffer(t *testing.T) {
	s, err := NewSession(Config{}, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sdp, err := s.Offer(ctx)
	require.NoError(t, err)
	assert.Contains(t, sdp, "m=video")
	assert.Contains(t, sdp, "H264")
	assert.Contains(t, sdp, "a=sendonly")
}

func TestSessionClosed(t *testing.T) {
	s, err := NewSession(Config{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.WriteRTP([]byte{0x80}), ErrClosed)
	assert.ErrorIs(t, s.Accept("v=0"), ErrClosed)
	assert.ErrorIs(t, s.AddCandidate(Candidate{}), ErrClosed)
	_, err = s.Offer(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAcceptRejectsGarbage(t *testing.T) {
	s, err := NewSession(Config{}, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Error(t, s.Accept("not sdp"))
}
