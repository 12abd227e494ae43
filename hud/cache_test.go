package hud

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheRendersOnce(t *testing.T) {
	renders := 0
	c := Cache[string]{Limit: 4}
	for i := 0; i < 3; i++ {
		got := c.Get("score", func() string { renders++; return "img" })
		assert.Equal(t, "img", got)
	}
	assert.Equal(t, 1, renders)
	assert.Equal(t, 1, c.Len())
}

func TestCacheBounded(t *testing.T) {
	var dropped []string
	c := Cache[string]{Limit: 3, Drop: func(v string) { dropped = append(dropped, v) }}
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("You 0 - %d Opponent", i*10)
		c.Get(key, func() string { return key })
		assert.LessOrEqual(t, c.Len(), 3)
	}
	assert.Len(t, dropped, 9)

	c.Reset()
	assert.Equal(t, 0, c.Len())
	assert.Len(t, dropped, 10)
}
