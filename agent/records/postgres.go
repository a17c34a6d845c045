package records

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type inboxRow struct {
	bun.BaseModel `bun:"table:staff_inbox_messages,alias:m"`

	ID               int64     `bun:"id,pk,autoincrement"`
	StaffID          string    `bun:"staff_id,notnull"`
	Timestamp        time.Time `bun:"sent_at,notnull"`
	Title            string    `bun:"title"`
	MessageContent   string    `bun:"message_content"`
	CustomerID       string    `bun:"customer_id"`
	CustomerName     string    `bun:"customer_name"`
	CustomerUserID   string    `bun:"customer_user_id"`
	CustomerUserName string    `bun:"customer_user_name"`
	FromUserID       string    `bun:"from_user_id"`
}

func (r *inboxRow) message() InboxMessage {
	return InboxMessage{
		Timestamp:        r.Timestamp.UTC(),
		Title:            r.Title,
		MessageContent:   r.MessageContent,
		CustomerID:       r.CustomerID,
		CustomerName:     r.CustomerName,
		CustomerUserID:   r.CustomerUserID,
		CustomerUserName: r.CustomerUserName,
		FromUserID:       r.FromUserID,
	}
}

// PostgresInbox stores inbox records in the staff_inbox_messages table.
type PostgresInbox struct {
	db  bun.IDB
	now func() time.Time
}

func NewPostgresInbox(db bun.IDB) *PostgresInbox {
	return &PostgresInbox{db: db, now: time.Now}
}

// Migrate creates the table and its lookup index when missing.
func (b *PostgresInbox) Migrate(ctx context.Context) error {
	if _, err := b.db.NewCreateTable().Model((*inboxRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create staff_inbox_messages: %w", err)
	}
	if _, err := b.db.NewCreateIndex().
		Model((*inboxRow)(nil)).
		Index("staff_inbox_messages_staff_sent_at_idx").
		IfNotExists().
		Column("staff_id", "sent_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("create staff_inbox_messages index: %w", err)
	}
	return nil
}

func (b *PostgresInbox) Append(ctx context.Context, staffID string, msg InboxMessage) (InboxMessage, error) {
	if staffID == "" {
		return InboxMessage{}, ErrInvalidStaffID
	}

	err := b.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// serialize appends per recipient so the timestamp clamp sees the latest row
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", staffID); err != nil {
			return err
		}

		var last sql.NullTime
		if err := tx.NewSelect().
			Model((*inboxRow)(nil)).
			ColumnExpr("MAX(sent_at)").
			Where("staff_id = ?", staffID).
			Scan(ctx, &last); err != nil {
			return err
		}

		msg.Timestamp = nextTimestamp(b.now(), last.Time)
		row := &inboxRow{
			StaffID:          staffID,
			Timestamp:        msg.Timestamp,
			Title:            msg.Title,
			MessageContent:   msg.MessageContent,
			CustomerID:       msg.CustomerID,
			CustomerName:     msg.CustomerName,
			CustomerUserID:   msg.CustomerUserID,
			CustomerUserName: msg.CustomerUserName,
			FromUserID:       msg.FromUserID,
		}
		_, err := tx.NewInsert().Model(row).Exec(ctx)
		return err
	})
	if err != nil {
		return InboxMessage{}, fmt.Errorf("append inbox %s: %w", staffID, err)
	}
	return msg, nil
}

func (b *PostgresInbox) List(ctx context.Context, staffID string) ([]InboxMessage, error) {
	var rows []inboxRow
	if err := b.db.NewSelect().
		Model(&rows).
		Where("staff_id = ?", staffID).
		Order("sent_at ASC", "id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("list inbox %s: %w", staffID, err)
	}

	out := make([]InboxMessage, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].message())
	}
	return out, nil
}
