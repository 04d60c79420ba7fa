package chatrix

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChimeInitOnce(t *testing.T) {
	built := 0
	player := &countingPlayer{}
	chime := NewChime(func() Player {
		built++
		return player
	})

	chime.Init()
	chime.Init()
	chime.Play()
	chime.Play()

	assert.Equal(t, 1, built)
	assert.Equal(t, 2, player.plays)
}

func TestChimePlayWithoutInit(t *testing.T) {
	var buf bytes.Buffer
	chime := NewChime(func() Player { return BellPlayer{Out: &buf} })

	chime.Play()
	assert.Equal(t, "\a", buf.String())

	var silent *Chime
	silent.Init()
	silent.Play()
}
