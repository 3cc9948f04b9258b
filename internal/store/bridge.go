package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/subsidy-console/internal/model"
)

const (
	listKeyPrefix   = "notifications_"
	stampKeySuffix  = "_timestamp"
	stampTimeLayout = time.RFC3339Nano
)

// ListKey returns the key holding the serialized feed for role.
func ListKey(role string) string {
	return listKeyPrefix + role
}

// StampKey returns the key holding the last-write instant for role.
func StampKey(role string) string {
	return ListKey(role) + stampKeySuffix
}

// namedPartition labels a partition for logs and errors.
type namedPartition struct {
	name string
	Partition
}

// Bridge mirrors a role's feed into a session partition and a durable
// partition. The two writes are independent; nothing guarantees the
// partitions agree with each other.
type Bridge struct {
	session namedPartition
	durable namedPartition
	log     *logrus.Entry
	now     func() time.Time
}

// NewBridge creates a Bridge over the given partitions.
func NewBridge(session, durable Partition, log *logrus.Entry) *Bridge {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bridge{
		session: namedPartition{name: "session", Partition: session},
		durable: namedPartition{name: "durable", Partition: durable},
		log:     log.WithField("component", "bridge"),
		now:     time.Now,
	}
}

// partitions returns the partitions in restore order.
func (b *Bridge) partitions() []namedPartition {
	return []namedPartition{b.session, b.durable}
}

// Persist writes list and a last-write stamp for role to the session
// partition, then to the durable one. A failure in one partition does not
// stop the other; all failures are joined into the returned error.
func (b *Bridge) Persist(ctx context.Context, role string, list []model.Notification) error {
	if list == nil {
		list = []model.Notification{}
	}

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encoding notifications for %s: %w", role, err)
	}
	stamp := b.now().UTC().Format(stampTimeLayout)

	var errs []error
	for _, p := range b.partitions() {
		if err := p.Set(ctx, ListKey(role), string(data)); err != nil {
			errs = append(errs, fmt.Errorf("%s partition: %w", p.name, err))
			continue
		}
		if err := p.Set(ctx, StampKey(role), stamp); err != nil {
			errs = append(errs, fmt.Errorf("%s partition: %w", p.name, err))
		}
	}
	return errors.Join(errs...)
}

// Restore returns the feed for role from the session partition, falling
// back to the durable partition, then to an empty list. Undecodable data
// is cleared from its partition and skipped. Restore never fails.
func (b *Bridge) Restore(ctx context.Context, role string) []model.Notification {
	for _, p := range b.partitions() {
		list, ok := b.restoreFrom(ctx, p, role)
		if ok {
			return list
		}
	}
	return []model.Notification{}
}

func (b *Bridge) restoreFrom(ctx context.Context, p namedPartition, role string) ([]model.Notification, bool) {
	log := b.log.WithFields(logrus.Fields{"partition": p.name, "role": role})

	raw, found, err := p.Get(ctx, ListKey(role))
	if err != nil {
		log.WithError(err).Warn("reading persisted notifications")
		if errors.Is(err, ErrCorrupt) {
			b.clearPartition(ctx, p, role)
		}
		return nil, false
	}
	if !found {
		return nil, false
	}

	var list []model.Notification
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		log.WithError(err).Warn("discarding corrupt persisted notifications")
		b.clearPartition(ctx, p, role)
		return nil, false
	}
	if list == nil {
		list = []model.Notification{}
	}
	return list, true
}

func (b *Bridge) clearPartition(ctx context.Context, p namedPartition, role string) {
	if err := p.Delete(ctx, ListKey(role), StampKey(role)); err != nil {
		b.log.WithError(err).WithFields(logrus.Fields{
			"partition": p.name,
			"role":      role,
		}).Warn("clearing partition")
	}
}

// HasSessionSnapshot reports whether the session partition holds a feed
// for role, which means the client is being reloaded rather than started
// fresh.
func (b *Bridge) HasSessionSnapshot(ctx context.Context, role string) bool {
	_, found, err := b.session.Get(ctx, ListKey(role))
	return err == nil && found
}

// PurgeIfStale discards role's data from both partitions when either
// holds content matching one of patterns, such as sample fixtures left
// behind by earlier deployments. It reports whether a purge happened.
func (b *Bridge) PurgeIfStale(ctx context.Context, role string, patterns []*regexp.Regexp) bool {
	if len(patterns) == 0 {
		return false
	}

	for _, p := range b.partitions() {
		raw, found, err := p.Get(ctx, ListKey(role))
		if err != nil || !found {
			continue
		}
		for _, re := range patterns {
			if !re.MatchString(raw) {
				continue
			}
			b.log.WithFields(logrus.Fields{
				"partition": p.name,
				"role":      role,
				"pattern":   re.String(),
			}).Info("purging stale notification data")
			b.Clear(ctx, role)
			return true
		}
	}
	return false
}

// Clear removes role's feed and stamp from both partitions.
func (b *Bridge) Clear(ctx context.Context, role string) {
	for _, p := range b.partitions() {
		b.clearPartition(ctx, p, role)
	}
}

// PurgeExpiredPartitions removes every role's durable data whose
// last-write stamp is older than maxAge, leaving keep untouched. It
// returns the number of roles purged.
func (b *Bridge) PurgeExpiredPartitions(ctx context.Context, maxAge time.Duration, keep string) (int, error) {
	keys, err := b.durable.Keys(ctx, listKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("listing durable partitions: %w", err)
	}

	now := b.now()
	purged := 0
	for _, k := range keys {
		if !strings.HasSuffix(k, stampKeySuffix) {
			continue
		}
		role := strings.TrimSuffix(strings.TrimPrefix(k, listKeyPrefix), stampKeySuffix)
		if role == keep {
			continue
		}

		raw, found, err := b.durable.Get(ctx, k)
		if err != nil || !found {
			continue
		}
		stamp, err := time.Parse(stampTimeLayout, raw)
		if err == nil && now.Sub(stamp) <= maxAge {
			continue
		}

		if err := b.durable.Delete(ctx, ListKey(role), StampKey(role)); err != nil {
			return purged, fmt.Errorf("purging partition %s: %w", role, err)
		}
		b.log.WithField("role", role).Info("purged expired notification partition")
		purged++
	}
	return purged, nil
}
