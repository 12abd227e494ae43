package main

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Action reacts to one running tween.
type Action struct {
	nexts    []func(g *Game)
	onChange func(float32)
	onFinish []func()
}

func (a *Action) addOnFinish(f func()) {
	a.onFinish = append(a.onFinish, f)
}

// next queues t to start once the current tween finishes.
func (a *Action) next(t *gween.Tween) *Action {
	action := &Action{}
	a.nexts = append(a.nexts,
		func(g *Game) {
			g.Tweens[t] = action
		})
	return action
}

func (g *Game) updateTweens(dt float32) {
	for t, a := range g.Tweens {
		curr, finished := t.Update(dt)
		if a.onChange != nil {
			a.onChange(curr)
		}
		if finished {
			for _, onFinish := range a.onFinish {
				onFinish()
			}
			for _, next := range a.nexts {
				next(g)
			}
			delete(g.Tweens, t)
		}
	}
}

// pulseCountdown zooms the countdown digit in and back.
func (g *Game) pulseCountdown() {
	a := &Action{onChange: func(v float32) { g.pulse = v }}
	g.Tweens[gween.New(2.2, 1, 0.5, ease.OutBack)] = a
	a.next(gween.New(1, 0.8, 0.4, ease.InQuad)).onChange = func(v float32) { g.pulse = v }
}

// dropBanner slides the game over panel in from above.
func (g *Game) dropBanner() {
	g.bannerY = -bannerHeight
	a := &Action{onChange: func(v float32) { g.bannerY = v }}
	a.addOnFinish(func() { g.bannerSettled = true })
	g.bannerSettled = false
	g.Tweens[gween.New(-bannerHeight, float32(screenHeight-bannerHeight)/2, 0.9, ease.OutBounce)] = a
}
