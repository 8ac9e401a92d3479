package clientstatus

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openframe-oss/openframe-client/internal/model"
)

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakePublisher) Publish(ctx context.Context, subject string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return nil
}

func TestSetStatus_UpdatesCurrent(t *testing.T) {
	tr := New("m1", nil)
	tr.SetStatus(model.ClientStatusUpdating, "v2.0.0")
	status, target := tr.Current()
	assert.Equal(t, model.ClientStatusUpdating, status)
	assert.Equal(t, "v2.0.0", target)
}

func TestSetStatus_PublishesToMachineSubject(t *testing.T) {
	pub := &fakePublisher{}
	tr := New("m1", pub)
	tr.SetStatus(model.ClientStatusSuccess, "v2.0.0")

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.subjects, 1)
	assert.Equal(t, "machine.m1.clientstatus", pub.subjects[0])
}

func TestSetStatus_NilPublisherDoesNotPanic(t *testing.T) {
	tr := New("m1", nil)
	assert.NotPanics(t, func() {
		tr.SetStatus(model.ClientStatusFailed, "v2.0.0")
	})
}
