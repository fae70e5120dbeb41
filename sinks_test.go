package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"voicechat/session"
)

func TestAttemptLogCounts(t *testing.T) {
	a := newAttemptLog("mic")

	a.StateChanged(session.StateRecording, nil)
	a.StateChanged(session.StateProcessing, nil)
	a.StateChanged(session.StateIdle, nil)
	assert.Equal(t, 1, a.Attempt())

	// refused attempt never records
	a.StateChanged(session.StateError, &session.SessionError{Kind: session.ErrorPermissionDenied})
	assert.Equal(t, 2, a.Attempt())

	a.StateChanged(session.StateRecording, nil)
	a.StateChanged(session.StateError, &session.SessionError{Kind: session.ErrorCaptureFailure})
	assert.Equal(t, 3, a.Attempt())

	a.StateChanged(session.StateRecording, nil)
	a.StateChanged(session.StateIdle, nil)
	assert.Equal(t, 4, a.Attempt())
}
