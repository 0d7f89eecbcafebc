package display

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/moodchat/internal/model/emotion"
)

type recordingSurface struct {
	views []View
}

func (r *recordingSurface) Show(v View) { r.views = append(r.views, v) }

func TestApplyRecognizedEmotion(t *testing.T) {
	surface := &recordingSurface{}
	u := NewUpdater(surface, nil)

	u.Apply("happy", 0.8)

	require.Len(t, surface.views, 1)
	v := surface.views[0]
	assert.Equal(t, "happy", v.Identifier)
	assert.Equal(t, "happy 😊", v.Label)
	assert.InDelta(t, 80.0, v.BarWidth, 1e-9)
	assert.Equal(t, "80%", v.BarCSS())
	assert.Equal(t, "0.8", v.Readout)
	assert.Equal(t, "emotions/happy.png", v.Artwork)
	assert.Equal(t, emotion.State{Identifier: "happy", Intensity: 0.8}, u.State())
}

func TestApplyTranslatesDeprecatedIdentifier(t *testing.T) {
	surface := &recordingSurface{}
	u := NewUpdater(surface, nil)

	u.Apply("Worried", 0.25)

	v := surface.views[0]
	assert.Equal(t, "concerned", v.Identifier)
	assert.Equal(t, "0.3", v.Readout)
}

func TestApplyUnknownFallsBackToDefault(t *testing.T) {
	surface := &recordingSurface{}
	u := NewUpdater(surface, nil)

	u.Apply("happy", 0.5)
	u.Apply("bewildered", 0.4)

	require.Len(t, surface.views, 2)
	v := surface.views[1]
	assert.Equal(t, string(emotion.Default), v.Identifier)
	assert.Equal(t, "😐", v.Glyph)
	assert.Equal(t, "emotions/calm.png", v.Artwork)
}

func TestApplyDoesNotClampIntensity(t *testing.T) {
	surface := &recordingSurface{}
	u := NewUpdater(surface, nil)

	u.Apply("sad", 1.5)

	assert.Equal(t, "150%", surface.views[0].BarCSS())
	assert.Equal(t, "1.5", surface.views[0].Readout)
}

func TestApplyWithoutSurfaceIsNoop(t *testing.T) {
	u := NewUpdater(nil, nil)

	assert.NotPanics(t, func() { u.Apply("happy", 0.7) })
	assert.Equal(t, "happy", u.State().Identifier)

	surface := &recordingSurface{}
	u.Attach(surface)
	require.Len(t, surface.views, 1)
	assert.Equal(t, "0.7", surface.views[0].Readout)
}

func TestAttachBeforeAnyApplyDrawsNothing(t *testing.T) {
	u := NewUpdater(nil, nil)
	surface := &recordingSurface{}
	u.Attach(surface)

	assert.Empty(t, surface.views)
	_, drawn := u.View()
	assert.False(t, drawn)
}

// blockingSurface holds the first Show until release is closed.
type blockingSurface struct {
	entered chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
	shown []string
}

func (b *blockingSurface) Show(v View) {
	b.mu.Lock()
	b.calls++
	first := b.calls == 1
	b.mu.Unlock()

	if first {
		close(b.entered)
		<-b.release
	}

	b.mu.Lock()
	b.shown = append(b.shown, v.Identifier)
	b.mu.Unlock()
}

func TestConcurrentApplyDrawsInStateOrder(t *testing.T) {
	surface := &blockingSurface{entered: make(chan struct{}), release: make(chan struct{})}
	u := NewUpdater(surface, nil)

	first := make(chan struct{})
	go func() {
		defer close(first)
		u.Apply("happy", 0.1)
	}()
	<-surface.entered

	second := make(chan struct{})
	go func() {
		defer close(second)
		u.Apply("sad", 0.9)
	}()

	select {
	case <-second:
		t.Fatal("second Apply finished while the first draw was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(surface.release)
	<-first
	<-second

	surface.mu.Lock()
	defer surface.mu.Unlock()
	assert.Equal(t, []string{"happy", "sad"}, surface.shown)
	assert.Equal(t, "sad", u.State().Identifier)
}
