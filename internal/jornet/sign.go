package jornet

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"

	"github.com/google/uuid"
)

// Sign computes the authentication tag of a score submission.
//
// The message layout is part of the wire contract and must match the
// server's verification byte for byte:
//
//	timestamp (u64 LE) | leaderboard key (16) | player id (16) | score (f32 LE) | meta (UTF-8, if any)
//
// Sign panics on an empty key.
func Sign(playerKey []byte, timestamp uint64, leaderboardKey, playerID uuid.UUID, score float32, meta *string) string {
	if len(playerKey) == 0 {
		panic("jornet: signing key is empty")
	}

	mac := hmac.New(sha256.New, playerKey)
	_, _ = mac.Write(binary.LittleEndian.AppendUint64(nil, timestamp))
	_, _ = mac.Write(leaderboardKey[:])
	_, _ = mac.Write(playerID[:])
	_, _ = mac.Write(binary.LittleEndian.AppendUint32(nil, math.Float32bits(score)))
	if meta != nil {
		_, _ = mac.Write([]byte(*meta))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the tag Sign would produce.
func Verify(playerKey []byte, timestamp uint64, leaderboardKey, playerID uuid.UUID, score float32, meta *string, signature string) bool {
	if len(playerKey) == 0 {
		return false
	}
	expected := Sign(playerKey, timestamp, leaderboardKey, playerID, score, meta)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// NewScoreInput builds the signed submission of score for player. The
// timestamp is taken from now, in whole seconds since the epoch. It panics
// if the player has no key.
func NewScoreInput(now time.Time, leaderboardKey uuid.UUID, player Player, score float32, meta *string) ScoreInput {
	if player.Key == uuid.Nil {
		panic("jornet: player key is nil")
	}
	timestamp := uint64(now.Unix())
	return ScoreInput{
		Score:     score,
		Player:    player.ID,
		Meta:      meta,
		Timestamp: timestamp,
		K:         Sign(player.Key[:], timestamp, leaderboardKey, player.ID, score, meta),
	}
}
