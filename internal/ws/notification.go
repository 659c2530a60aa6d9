package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/krishanu7/battleship-engine/internal/game"
	"github.com/krishanu7/battleship-engine/internal/notify"
	"github.com/krishanu7/battleship-engine/pkg/logging"
	wsPkg "github.com/krishanu7/battleship-engine/pkg/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Push is what a connected player receives on the notifications socket.
type Push struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id"`
	Message string `json:"message"`
}

const (
	mailTimeout  = 30 * time.Second
	maxMailSends = 8
)

// NotificationWorker delivers notifications to connected players and, for
// players with an email address, by mail. Mail goes out in the background
// so a slow mail server never holds up pushes.
type NotificationWorker struct {
	RedisClient *redis.Client
	GeneralHub  *wsPkg.GeneralHub
	Mailer      notify.Mailer
	MailTimeout time.Duration

	mailSlots chan struct{}
	mailWG    sync.WaitGroup
}

func NewNotificationWorker(rdb *redis.Client, hub *wsPkg.GeneralHub, mailer notify.Mailer) *NotificationWorker {
	return &NotificationWorker{
		RedisClient: rdb,
		GeneralHub:  hub,
		Mailer:      mailer,
		MailTimeout: mailTimeout,
		mailSlots:   make(chan struct{}, maxMailSends),
	}
}

// Run consumes the notifications channel until ctx is done.
func (w *NotificationWorker) Run(ctx context.Context) {
	logging.Info("notification worker starting")
	pubsub := w.RedisClient.Subscribe(ctx, notify.Channel)
	defer pubsub.Close()

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			logging.Info("notification worker stopped")
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var n game.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				logging.Warn("failed to unmarshal notification", zap.Error(err))
				continue
			}
			w.Deliver(ctx, n)
		}
	}
}

// Deliver pushes n to connected recipients and queues their mail. It does
// not wait for the mail to be sent.
func (w *NotificationWorker) Deliver(_ context.Context, n game.Notification) {
	payload, err := json.Marshal(Push{Type: n.Type, MatchID: n.MatchID, Message: n.Message})
	if err != nil {
		logging.Warn("failed to marshal push", zap.Error(err))
		return
	}
	for _, r := range n.Recipients {
		if w.GeneralHub.SendToClient(r.Name, payload) {
			logging.Debug("notification pushed", zap.String("player", r.Name), zap.String("type", n.Type))
		}
		if r.Email == "" || w.Mailer == nil {
			continue
		}
		w.mailWG.Add(1)
		go w.mail(n, r)
	}
}

// Wait blocks until every queued mail has been sent or has failed.
func (w *NotificationWorker) Wait() {
	w.mailWG.Wait()
}

func (w *NotificationWorker) mail(n game.Notification, r game.Recipient) {
	defer w.mailWG.Done()
	w.mailSlots <- struct{}{}
	defer func() { <-w.mailSlots }()

	ctx, cancel := context.WithTimeout(context.Background(), w.MailTimeout)
	defer cancel()
	if err := w.Mailer.Send(ctx, r.Email, notify.Subject(n), notify.EmailBody(n, r)); err != nil {
		logging.Warn("failed to send notification mail",
			zap.String("player", r.Name),
			zap.String("match_id", n.MatchID),
			zap.Error(err),
		)
	}
}
