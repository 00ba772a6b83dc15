// ABOUTME: Tests for the mode registry
// ABOUTME: Covers guest pinning, server ordering, and failure degradation

package modes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devassist/assist/internal/chat"
)

type fakeLister struct {
	modes []chat.Mode
	err   error
	calls int
}

func (f *fakeLister) ListModes(context.Context) ([]chat.Mode, error) {
	f.calls++
	return f.modes, f.err
}

func TestRegistry_List_Guest(t *testing.T) {
	lister := &fakeLister{}
	r := New(lister, nil)

	modes := r.List(context.Background(), chat.Guest())
	assert.Equal(t, []chat.Mode{GuestMode}, modes)
	assert.Zero(t, lister.calls, "guest modes are never fetched remotely")
}

func TestRegistry_List_Authenticated(t *testing.T) {
	lister := &fakeLister{modes: []chat.Mode{
		{ID: 2, Name: "coder"},
		{ID: 1, Name: "default"},
	}}
	r := New(lister, nil)

	modes := r.List(context.Background(), chat.Authenticated(chat.User{ID: 1}))
	assert.Len(t, modes, 2)
	assert.Equal(t, 2, modes[0].ID, "server order is preserved")

	def, ok := Default(modes)
	assert.True(t, ok)
	assert.Equal(t, "coder", def.Name, "first listed mode is the default selection")
}

func TestRegistry_List_BackendFailure(t *testing.T) {
	lister := &fakeLister{err: errors.New("backend down")}
	r := New(lister, nil)

	modes := r.List(context.Background(), chat.Authenticated(chat.User{ID: 1}))
	assert.Empty(t, modes, "failure degrades to an empty list, not an error")

	_, ok := Default(modes)
	assert.False(t, ok)
}
