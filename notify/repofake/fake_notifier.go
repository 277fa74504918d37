package fakenotifier

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-session-server/notify"
)

var _ notify.Notifier = (*FakeNotifier)(nil)

type Sent struct {
	Channel     notify.Channel
	Destination string
	Code        string
	ResetToken  string
}

// FakeNotifier keeps every message in memory so tests can read back the
// codes and tokens that a real user would receive.
type FakeNotifier struct {
	lock sync.Mutex
	sent []Sent

	FailWith error
}

func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{}
}

func (n *FakeNotifier) SendMFACode(_ context.Context, channel notify.Channel, destination, code string) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.FailWith != nil {
		return n.FailWith
	}
	n.sent = append(n.sent, Sent{Channel: channel, Destination: destination, Code: code})
	return nil
}

func (n *FakeNotifier) SendPasswordReset(_ context.Context, email, resetToken string) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.FailWith != nil {
		return n.FailWith
	}
	n.sent = append(n.sent, Sent{Channel: notify.ChannelEmail, Destination: email, ResetToken: resetToken})
	return nil
}

// Last returns the most recent message sent to destination.
func (n *FakeNotifier) Last(destination string) (Sent, bool) {
	n.lock.Lock()
	defer n.lock.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Destination == destination {
			return n.sent[i], true
		}
	}
	return Sent{}, false
}

func (n *FakeNotifier) Count() int {
	n.lock.Lock()
	defer n.lock.Unlock()
	return len(n.sent)
}
