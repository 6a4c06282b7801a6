// Package gmail wraps the Gmail REST surface reachable through the broker
// proxy. Only the handful of calls the gateway dispatches are covered.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sylo/internal/broker"
	"sylo/internal/connector"
)

const serviceName = "gmail"

// Email is the normalized message shape the rest of the system consumes.
type Email struct {
	ID      string    `json:"id"`
	Subject string    `json:"subject"`
	From    string    `json:"from"`
	Date    time.Time `json:"date"`
	Snippet string    `json:"snippet"`
	Read    bool      `json:"read"`
	Labels  []string  `json:"labels,omitempty"`
}

// Stats summarizes a mailbox for the context compiler.
type Stats struct {
	Total      int `json:"total"`
	Unread     int `json:"unread"`
	Urgent     int `json:"urgent"`
	TodayCount int `json:"todayCount"`
}

type listResponse struct {
	Messages []struct {
		ID       string `json:"id"`
		ThreadID string `json:"threadId"`
	} `json:"messages"`
}

type detailResponse struct {
	ID       string   `json:"id"`
	LabelIDs []string `json:"labelIds"`
	Snippet  string   `json:"snippet"`
	Payload  struct {
		Headers []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
	} `json:"payload"`
	InternalDate string `json:"internalDate"`
}

type Service struct {
	broker broker.Caller
}

func New(b broker.Caller) *Service {
	return &Service{broker: b}
}

func (s *Service) Name() string { return serviceName }

// Actions returns the fixed Gmail action table.
func (s *Service) Actions() map[string]connector.ActionFunc {
	return map[string]connector.ActionFunc{
		"send_email":        s.actionSendEmail,
		"get_emails":        s.actionGetEmails,
		"get_unread_emails": s.actionGetUnreadEmails,
		"get_email_stats":   s.actionGetEmailStats,
	}
}

func (s *Service) actionSendEmail(ctx context.Context, connectionID string, params map[string]any) (map[string]any, error) {
	to, okTo := connector.StringParam(params, "to")
	subject, okSubject := connector.StringParam(params, "subject")
	body, okBody := connector.StringParam(params, "body")
	if !okTo || !okSubject || !okBody {
		return nil, connector.MissingParams("to", "subject", "body")
	}

	sent := s.SendEmail(ctx, connectionID, to, subject, body)
	data := map[string]any{"sent": sent, "to": to, "subject": subject}
	if !sent {
		// The call completed without throwing but the send did not happen;
		// the command result is still an error.
		return data, fmt.Errorf("Failed to send email")
	}
	return data, nil
}

func (s *Service) actionGetEmails(ctx context.Context, connectionID string, params map[string]any) (map[string]any, error) {
	maxResults := connector.IntParam(params, "maxResults", 10)
	query := connector.OptionalString(params, "query")

	emails, err := s.GetEmails(ctx, connectionID, maxResults, query)
	if err != nil {
		return nil, err
	}
	return map[string]any{"emails": emails, "count": len(emails)}, nil
}

func (s *Service) actionGetUnreadEmails(ctx context.Context, connectionID string, _ map[string]any) (map[string]any, error) {
	emails, err := s.GetUnreadEmails(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"emails": emails, "count": len(emails)}, nil
}

func (s *Service) actionGetEmailStats(ctx context.Context, connectionID string, _ map[string]any) (map[string]any, error) {
	stats, err := s.GetEmailStats(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"total":      stats.Total,
		"unread":     stats.Unread,
		"urgent":     stats.Urgent,
		"todayCount": stats.TodayCount,
	}, nil
}

// GetEmails lists up to maxResults messages, optionally filtered by a Gmail
// search query, and hydrates each with its subject, sender and labels. The
// per-message detail fetches run concurrently.
func (s *Service) GetEmails(ctx context.Context, connectionID string, maxResults int, query string) ([]Email, error) {
	endpoint := fmt.Sprintf("/gmail/v1/users/me/messages?maxResults=%d", maxResults)
	if query != "" {
		endpoint += "&q=" + url.QueryEscape(query)
	}

	var list listResponse
	if err := s.broker.ProxyCall(ctx, serviceName, connectionID, endpoint, "GET", nil, &list); err != nil {
		return nil, fmt.Errorf("fetch gmail messages: %w", err)
	}
	if len(list.Messages) == 0 {
		return []Email{}, nil
	}

	emails := make([]Email, len(list.Messages))
	g, gctx := errgroup.WithContext(ctx)
	for i, msg := range list.Messages {
		g.Go(func() error {
			detail, err := s.getDetail(gctx, connectionID, msg.ID)
			if err != nil {
				return err
			}
			emails[i] = Email{
				ID:      msg.ID,
				Subject: headerOr(detail, "Subject", "No Subject"),
				From:    headerOr(detail, "From", "Unknown Sender"),
				Date:    parseInternalDate(detail.InternalDate),
				Snippet: detail.Snippet,
				Read:    !slices.Contains(detail.LabelIDs, "UNREAD"),
				Labels:  detail.LabelIDs,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch gmail message details: %w", err)
	}
	return emails, nil
}

// GetUnreadEmails returns up to 20 unread messages.
func (s *Service) GetUnreadEmails(ctx context.Context, connectionID string) ([]Email, error) {
	return s.GetEmails(ctx, connectionID, 20, "is:unread")
}

// GetUrgentEmails returns unread messages flagged by urgency keywords.
func (s *Service) GetUrgentEmails(ctx context.Context, connectionID string) ([]Email, error) {
	return s.GetEmails(ctx, connectionID, 10, "is:unread (urgent OR ASAP OR priority)")
}

// SendEmail assembles a minimal RFC 2822 message and sends it. It reports
// whether the send actually happened; upstream failures surface as sent=false
// rather than an error, preserving the webhook result contract.
func (s *Service) SendEmail(ctx context.Context, connectionID, to, subject, body string) bool {
	raw := strings.Join([]string{"To: " + to, "Subject: " + subject, "", body}, "\n")
	encoded := base64.RawURLEncoding.EncodeToString([]byte(raw))

	err := s.broker.ProxyCall(ctx, serviceName, connectionID,
		"/gmail/v1/users/me/messages/send", "POST",
		map[string]any{"raw": encoded}, nil)
	return err == nil
}

// GetEmailStats aggregates unread, urgent and today's message counts. The
// three underlying queries run concurrently.
func (s *Service) GetEmailStats(ctx context.Context, connectionID string) (*Stats, error) {
	var unread, urgent, today []Email

	midnight := time.Now().Truncate(24 * time.Hour)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		unread, err = s.GetUnreadEmails(gctx, connectionID)
		return err
	})
	g.Go(func() error {
		var err error
		urgent, err = s.GetUrgentEmails(gctx, connectionID)
		return err
	})
	g.Go(func() error {
		var err error
		today, err = s.GetEmails(gctx, connectionID, 50, fmt.Sprintf("after:%d", midnight.Unix()))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("gmail stats: %w", err)
	}

	return &Stats{
		Total:      0, // would need an extra profile call; unused downstream
		Unread:     len(unread),
		Urgent:     len(urgent),
		TodayCount: len(today),
	}, nil
}

func (s *Service) getDetail(ctx context.Context, connectionID, messageID string) (*detailResponse, error) {
	var detail detailResponse
	err := s.broker.ProxyCall(ctx, serviceName, connectionID,
		"/gmail/v1/users/me/messages/"+messageID, "GET", nil, &detail)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func headerOr(detail *detailResponse, name, fallback string) string {
	for _, h := range detail.Payload.Headers {
		if strings.EqualFold(h.Name, name) && h.Value != "" {
			return h.Value
		}
	}
	return fallback
}

func parseInternalDate(ms string) time.Time {
	v, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(v)
}
