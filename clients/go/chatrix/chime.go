package chatrix

import (
	"io"
	"sync"
)

// Player plays a notification sound.
type Player interface {
	Play() error
}

// BellPlayer rings the terminal bell.
type BellPlayer struct {
	Out io.Writer
}

func (b BellPlayer) Play() error {
	_, err := b.Out.Write([]byte("\a"))
	return err
}

// Chime is the lazily created notification sound. Init is idempotent and
// Play initializes on first use, so callers never need to prime it. A nil
// *Chime is silent.
type Chime struct {
	once      sync.Once
	newPlayer func() Player
	player    Player
}

// NewChime creates a chime whose player is built by newPlayer on first use.
func NewChime(newPlayer func() Player) *Chime {
	return &Chime{newPlayer: newPlayer}
}

// Init creates the player. Calls after the first are no-ops.
func (c *Chime) Init() {
	if c == nil {
		return
	}
	c.once.Do(func() {
		if c.newPlayer != nil {
			c.player = c.newPlayer()
		}
	})
}

// Play rings the chime. Playback errors are ignored.
func (c *Chime) Play() {
	if c == nil {
		return
	}
	c.Init()
	if c.player != nil {
		_ = c.player.Play()
	}
}
