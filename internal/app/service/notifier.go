package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jose-valero/verification-bot/internal/infra/metrics"
)

type DirectSender interface {
	SendDirect(ctx context.Context, userID string, card Card) error
}

// Notifier sends best-effort direct messages off the caller's path. Failures
// end up in the log and the metrics, never in the caller's result.
type Notifier struct {
	sender  DirectSender
	log     *logrus.Entry
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewNotifier(sender DirectSender, log *logrus.Entry) *Notifier {
	return &Notifier{sender: sender, log: log, timeout: 10 * time.Second}
}

func (n *Notifier) Dispatch(userID string, card Card) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		if err := n.sender.SendDirect(ctx, userID, card); err != nil {
			metrics.Notification("failed")
			n.log.WithError(err).WithField("user", userID).Warn(ErrNotifyFailed.Error())
			return
		}
		metrics.Notification("ok")
		n.log.WithField("user", userID).Info("direct notification sent")
	}()
}

// Wait blocks until every dispatched notification has finished.
func (n *Notifier) Wait() { n.wg.Wait() }
