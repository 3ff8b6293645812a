package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const pgChannel = "wallet_balance"

// PostgresTransport uses LISTEN/NOTIFY, so the feed comes from the same
// store that holds the balances.
type PostgresTransport struct {
	db  *sql.DB
	dsn string
}

func NewPostgresTransport(db *sql.DB, dsn string) *PostgresTransport {
	return &PostgresTransport{db: db, dsn: dsn}
}

func (t *PostgresTransport) Publish(ctx context.Context, evt BalanceEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode balance event: %w", err)
	}
	_, err = t.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", pgChannel, string(data))
	return err
}

func (t *PostgresTransport) Listen(ctx context.Context, deliver func(BalanceEvent)) error {
	listener := pq.NewListener(t.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logrus.WithField("error", err.Error()).Warn("postgres listener event")
		}
	})
	defer listener.Close()

	if err := listener.Listen(pgChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", pgChannel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-listener.Notify:
			if !ok {
				return errors.New("postgres listener closed")
			}
			// nil after a reconnect
			if n == nil {
				continue
			}
			var evt BalanceEvent
			if err := json.Unmarshal([]byte(n.Extra), &evt); err != nil {
				logrus.WithField("channel", n.Channel).Warn("dropping malformed balance event")
				continue
			}
			deliver(evt)
		case <-time.After(90 * time.Second):
			go listener.Ping()
		}
	}
}
