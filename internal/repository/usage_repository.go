package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsageRepository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

type DailyUsage struct {
	Date             time.Time `json:"date"`
	MessagesSent     int       `json:"messages_sent"`
	MessagesReceived int       `json:"messages_received"`
}

type ChatUsage struct {
	ChatID        string       `json:"chat_id"`
	TodaySent     int          `json:"today_sent"`
	TodayReceived int          `json:"today_received"`
	MonthSent     int          `json:"month_sent"`
	MonthReceived int          `json:"month_received"`
	History       []DailyUsage `json:"history"`
}

func NewUsageRepository(db *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: db, now: time.Now}
}

func (r *UsageRepository) today() string {
	return r.now().Format("2006-01-02")
}

// IncrementSent adds n to messages_sent for today
func (r *UsageRepository) IncrementSent(ctx context.Context, chatID string, n int) error {
	if n <= 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO message_usage (chat_id, date, messages_sent, messages_received)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (chat_id, date)
		DO UPDATE SET messages_sent = message_usage.messages_sent + EXCLUDED.messages_sent
	`, chatID, r.today(), n)
	return err
}

// IncrementReceived increments messages_received for today
func (r *UsageRepository) IncrementReceived(ctx context.Context, chatID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO message_usage (chat_id, date, messages_sent, messages_received)
		VALUES ($1, $2, 0, 1)
		ON CONFLICT (chat_id, date)
		DO UPDATE SET messages_received = message_usage.messages_received + 1
	`, chatID, r.today())
	return err
}

// GetTodayUsage returns today's message count
func (r *UsageRepository) GetTodayUsage(ctx context.Context, chatID string) (sent, received int, err error) {
	err = r.db.QueryRow(ctx, `
		SELECT messages_sent, messages_received
		FROM message_usage WHERE chat_id = $1 AND date = $2
	`, chatID, r.today()).Scan(&sent, &received)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, nil // No record means 0 usage
	}
	return sent, received, err
}

// GetMonthUsage returns this month's total message count
func (r *UsageRepository) GetMonthUsage(ctx context.Context, chatID string) (sent, received int, err error) {
	firstOfMonth := r.now().Format("2006-01") + "-01"
	err = r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(messages_sent), 0), COALESCE(SUM(messages_received), 0)
		FROM message_usage WHERE chat_id = $1 AND date >= $2
	`, chatID, firstOfMonth).Scan(&sent, &received)
	return sent, received, err
}

// GetUsageHistory returns last N days of usage
func (r *UsageRepository) GetUsageHistory(ctx context.Context, chatID string, days int) ([]DailyUsage, error) {
	startDate := r.now().AddDate(0, 0, -days).Format("2006-01-02")
	rows, err := r.db.Query(ctx, `
		SELECT date, messages_sent, messages_received
		FROM message_usage
		WHERE chat_id = $1 AND date >= $2
		ORDER BY date ASC
	`, chatID, startDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	usage := []DailyUsage{}
	for rows.Next() {
		var u DailyUsage
		if err := rows.Scan(&u.Date, &u.MessagesSent, &u.MessagesReceived); err != nil {
			return nil, err
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}

// GetChatUsage collects today, month and the last week for one chat
func (r *UsageRepository) GetChatUsage(ctx context.Context, chatID string) (*ChatUsage, error) {
	usage := &ChatUsage{ChatID: chatID}

	var err error
	if usage.TodaySent, usage.TodayReceived, err = r.GetTodayUsage(ctx, chatID); err != nil {
		return nil, err
	}
	if usage.MonthSent, usage.MonthReceived, err = r.GetMonthUsage(ctx, chatID); err != nil {
		return nil, err
	}
	if usage.History, err = r.GetUsageHistory(ctx, chatID, 7); err != nil {
		return nil, err
	}
	return usage, nil
}
