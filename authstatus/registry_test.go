package authstatus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobalStateFailedDominates(t *testing.T) {
	r := NewRegistry()
	r.Initialize(1)
	r.UpdatePhase(1, PhaseWakeUp, Success, "ok")
	r.UpdatePhase(1, PhaseAuthenticate, Failed, "bad step")
	r.UpdatePhase(1, PhaseReadInfo, Success, "ok")

	rec, ok := r.Get(1)
	assert.True(t, ok)
	assert.Equal(t, GlobalFailed, rec.GlobalState)
}

func TestGlobalStateAllSuccess(t *testing.T) {
	r := NewRegistry()
	r.Initialize(1)
	r.UpdatePhase(1, PhaseWakeUp, Success, "ok")
	r.UpdatePhase(1, PhaseAuthenticate, Success, "ok")
	r.UpdatePhase(1, PhaseReadInfo, Success, "ok")

	rec, _ := r.Get(1)
	assert.Equal(t, GlobalSuccess, rec.GlobalState)
}

func TestGlobalStateMixedSuccessIsInProgress(t *testing.T) {
	r := NewRegistry()
	r.Initialize(1)
	r.UpdatePhase(1, PhaseWakeUp, Success, "ok")

	rec, _ := r.Get(1)
	assert.Equal(t, GlobalProgress, rec.GlobalState)
}

func TestGlobalStateAllNotStartedIsWaiting(t *testing.T) {
	r := NewRegistry()
	r.Initialize(1)

	rec, _ := r.Get(1)
	assert.Equal(t, Waiting, rec.GlobalState)
}

func TestHistoryBoundedAt50(t *testing.T) {
	r := NewRegistry()
	r.Initialize(1)
	for i := 0; i < 60; i++ {
		r.UpdatePhase(1, PhaseWakeUp, InProgress, "tick")
	}
	rec, _ := r.Get(1)
	assert.Len(t, rec.History, 50)
}

func TestAllAuthenticatedRequiresFullFleet(t *testing.T) {
	r := NewRegistry()
	r.Initialize(1)
	r.UpdatePhase(1, PhaseWakeUp, Success, "ok")
	r.UpdatePhase(1, PhaseAuthenticate, Success, "ok")
	r.UpdatePhase(1, PhaseReadInfo, Success, "ok")

	assert.False(t, r.AllAuthenticated([]byte{1, 2}))
	assert.True(t, r.AllAuthenticated([]byte{1}))
	assert.Equal(t, []byte{2}, r.FailedIDs([]byte{1, 2}))
}
