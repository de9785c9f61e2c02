package notification

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vedran77/dmcore/internal/directory"
	"github.com/vedran77/dmcore/internal/domain"
	"github.com/vedran77/dmcore/internal/email"
	"github.com/vedran77/dmcore/internal/repository"
)

type DigestReport struct {
	Attempted int
	Sent      int
	Failed    int
}

// Digest builds and sends the daily unread-message summary emails.
type Digest struct {
	messages    repository.MessageRepository
	directory   directory.Client
	email       email.Client
	concurrency int
	log         *zap.Logger
}

func NewDigest(messages repository.MessageRepository, dir directory.Client, mail email.Client, concurrency int, log *zap.Logger) *Digest {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Digest{
		messages:    messages,
		directory:   dir,
		email:       mail,
		concurrency: concurrency,
		log:         log.With(zap.String("component", "notification.digest")),
	}
}

// UsersWithUnreadMessages groups unread, undeleted messages by receiver.
// Receivers the directory cannot resolve are left out; so are senders.
func (d *Digest) UsersWithUnreadMessages(ctx context.Context) ([]domain.UnreadNotificationSummary, error) {
	unread, err := d.messages.ListUnread(ctx)
	if err != nil {
		return nil, err
	}

	type group struct {
		count   int
		senders map[uuid.UUID]struct{}
	}
	groups := make(map[uuid.UUID]*group)
	var order []uuid.UUID
	for _, m := range unread {
		g, ok := groups[m.ReceiverID]
		if !ok {
			g = &group{senders: make(map[uuid.UUID]struct{})}
			groups[m.ReceiverID] = g
			order = append(order, m.ReceiverID)
		}
		g.count++
		g.senders[m.SenderID] = struct{}{}
	}

	names := make(map[uuid.UUID]string)
	summaries := make([]domain.UnreadNotificationSummary, 0, len(order))
	for _, receiverID := range order {
		recipient := d.lookup(ctx, receiverID)
		if recipient == nil {
			d.log.Info("skipping digest for unknown recipient", zap.String("user_id", receiverID.String()))
			continue
		}

		g := groups[receiverID]
		senderNames := make([]string, 0, len(g.senders))
		seen := make(map[string]struct{})
		for senderID := range g.senders {
			name, ok := names[senderID]
			if !ok {
				if u := d.lookup(ctx, senderID); u != nil {
					name = u.Name()
				}
				names[senderID] = name
			}
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			senderNames = append(senderNames, name)
		}
		sort.Strings(senderNames)

		summaries = append(summaries, domain.UnreadNotificationSummary{
			Recipient:   *recipient,
			UnreadCount: g.count,
			SenderNames: senderNames,
		})
	}
	return summaries, nil
}

func (d *Digest) lookup(ctx context.Context, id uuid.UUID) *domain.UserSummary {
	u, err := d.directory.GetUserByID(ctx, id)
	if err != nil {
		d.log.Warn("directory lookup failed", zap.String("user_id", id.String()), zap.Error(err))
		return nil
	}
	return u
}

// SendDailyDigest sends one email per recipient. Every recipient is attempted
// even when others fail.
func (d *Digest) SendDailyDigest(ctx context.Context) (DigestReport, error) {
	summaries, err := d.UsersWithUnreadMessages(ctx)
	if err != nil {
		d.log.Error("collect unread summaries", zap.Error(err))
		return DigestReport{}, err
	}

	var sent, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, s := range summaries {
		g.Go(func() error {
			if d.sendOne(gctx, s) {
				sent.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := DigestReport{
		Attempted: len(summaries),
		Sent:      int(sent.Load()),
		Failed:    int(failed.Load()),
	}
	d.log.Info("daily digest finished",
		zap.Int("attempted", report.Attempted),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (d *Digest) sendOne(ctx context.Context, s domain.UnreadNotificationSummary) (ok bool) {
	log := d.log.With(zap.String("recipient_id", s.Recipient.ID.String()))
	defer func() {
		if r := recover(); r != nil {
			log.Error("digest send panicked", zap.Any("panic", r))
			ok = false
		}
	}()

	sent, err := d.email.SendUnreadDigest(ctx, s)
	if err != nil {
		log.Warn("digest send failed", zap.Error(err))
		return false
	}
	if !sent {
		log.Info("digest not delivered")
	}
	return sent
}
