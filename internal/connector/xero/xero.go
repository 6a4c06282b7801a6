// Package xero wraps the Xero accounting API surface reachable through the
// broker proxy.
package xero

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"sylo/internal/broker"
	"sylo/internal/connector"
)

const serviceName = "xero"

// Invoice types: accounts receivable vs accounts payable.
const (
	TypeReceivable = "ACCREC"
	TypePayable    = "ACCPAY"
)

type Invoice struct {
	InvoiceID     string  `json:"InvoiceID"`
	InvoiceNumber string  `json:"InvoiceNumber"`
	Type          string  `json:"Type"`
	Status        string  `json:"Status"`
	Date          string  `json:"Date"`
	DueDate       string  `json:"DueDate"`
	Total         float64 `json:"Total"`
	AmountDue     float64 `json:"AmountDue"`
	AmountPaid    float64 `json:"AmountPaid"`
	Contact       Contact `json:"Contact"`
	CurrencyCode  string  `json:"CurrencyCode"`
}

type Contact struct {
	ContactID     string `json:"ContactID"`
	Name          string `json:"Name"`
	EmailAddress  string `json:"EmailAddress,omitempty"`
	ContactStatus string `json:"ContactStatus,omitempty"`
}

type Account struct {
	AccountID    string `json:"AccountID"`
	Code         string `json:"Code"`
	Name         string `json:"Name"`
	Type         string `json:"Type"`
	Class        string `json:"Class"`
	Status       string `json:"Status"`
	CurrencyCode string `json:"CurrencyCode,omitempty"`
}

// FinancialSummary aggregates invoice totals for the context compiler.
type FinancialSummary struct {
	TotalReceivables float64 `json:"totalReceivables"`
	TotalPayables    float64 `json:"totalPayables"`
	OverdueAmount    float64 `json:"overdueAmount"`
	OverdueCount     int     `json:"overdueCount"`
	TotalInvoices    int     `json:"totalInvoices"`
	PaidInvoices     int     `json:"paidInvoices"`
}

type invoicesResponse struct {
	Invoices []Invoice `json:"Invoices"`
}

type contactsResponse struct {
	Contacts []Contact `json:"Contacts"`
}

type accountsResponse struct {
	Accounts []Account `json:"Accounts"`
}

type Service struct {
	broker broker.Caller
}

func New(b broker.Caller) *Service {
	return &Service{broker: b}
}

func (s *Service) Name() string { return serviceName }

// Actions returns the fixed Xero action table.
func (s *Service) Actions() map[string]connector.ActionFunc {
	return map[string]connector.ActionFunc{
		"get_financial_summary":    s.actionGetFinancialSummary,
		"get_overdue_invoices":     s.actionGetOverdueInvoices,
		"get_outstanding_invoices": s.actionGetOutstandingInvoices,
		"get_invoices":             s.actionGetInvoices,
		"get_contacts":             s.actionGetContacts,
		"get_accounts":             s.actionGetAccounts,
		"create_contact":           s.actionCreateContact,
	}
}

func (s *Service) actionGetFinancialSummary(ctx context.Context, connectionID string, _ map[string]any) (map[string]any, error) {
	summary, err := s.GetFinancialSummary(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"totalReceivables": summary.TotalReceivables,
		"totalPayables":    summary.TotalPayables,
		"overdueAmount":    summary.OverdueAmount,
		"overdueCount":     summary.OverdueCount,
		"totalInvoices":    summary.TotalInvoices,
		"paidInvoices":     summary.PaidInvoices,
	}, nil
}

func (s *Service) actionGetOverdueInvoices(ctx context.Context, connectionID string, _ map[string]any) (map[string]any, error) {
	invoices, err := s.GetOverdueInvoices(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"invoices": invoices, "count": len(invoices)}, nil
}

func (s *Service) actionGetOutstandingInvoices(ctx context.Context, connectionID string, _ map[string]any) (map[string]any, error) {
	invoices, err := s.GetOutstandingInvoices(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"invoices": invoices, "count": len(invoices)}, nil
}

func (s *Service) actionGetInvoices(ctx context.Context, connectionID string, _ map[string]any) (map[string]any, error) {
	invoices, err := s.GetInvoices(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"invoices": invoices, "count": len(invoices)}, nil
}

func (s *Service) actionGetContacts(ctx context.Context, connectionID string, _ map[string]any) (map[string]any, error) {
	contacts, err := s.GetContacts(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"contacts": contacts, "count": len(contacts)}, nil
}

func (s *Service) actionGetAccounts(ctx context.Context, connectionID string, _ map[string]any) (map[string]any, error) {
	accounts, err := s.GetAccounts(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"accounts": accounts, "count": len(accounts)}, nil
}

func (s *Service) actionCreateContact(ctx context.Context, connectionID string, params map[string]any) (map[string]any, error) {
	name, ok := connector.StringParam(params, "name")
	if !ok {
		return nil, fmt.Errorf("Missing required parameter: name")
	}

	contact, err := s.CreateContact(ctx, connectionID, Contact{
		Name:         name,
		EmailAddress: connector.OptionalString(params, "email"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"contact": contact}, nil
}

// GetInvoices lists invoices, newest first.
func (s *Service) GetInvoices(ctx context.Context, connectionID string) ([]Invoice, error) {
	var resp invoicesResponse
	if err := s.broker.ProxyCall(ctx, serviceName, connectionID, "/api.xro/2.0/Invoices?page=1&unitdp=2", "GET", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch xero invoices: %w", err)
	}
	return orEmpty(resp.Invoices), nil
}

// GetOutstandingInvoices lists authorised invoices with an amount still due.
func (s *Service) GetOutstandingInvoices(ctx context.Context, connectionID string) ([]Invoice, error) {
	endpoint := "/api.xro/2.0/Invoices?where=" + url.QueryEscape(`Status="AUTHORISED"`) + "&order=" + url.QueryEscape("Date DESC")
	var resp invoicesResponse
	if err := s.broker.ProxyCall(ctx, serviceName, connectionID, endpoint, "GET", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch outstanding xero invoices: %w", err)
	}
	return withAmountDue(resp.Invoices), nil
}

// GetOverdueInvoices lists authorised invoices past their due date with an
// amount still due.
func (s *Service) GetOverdueInvoices(ctx context.Context, connectionID string) ([]Invoice, error) {
	today := time.Now().Format("2006-01-02")
	where := fmt.Sprintf(`Status="AUTHORISED" AND DueDate<DateTime(%s)`, today)
	endpoint := "/api.xro/2.0/Invoices?where=" + url.QueryEscape(where)
	var resp invoicesResponse
	if err := s.broker.ProxyCall(ctx, serviceName, connectionID, endpoint, "GET", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch overdue xero invoices: %w", err)
	}
	return withAmountDue(resp.Invoices), nil
}

// GetContacts lists contacts.
func (s *Service) GetContacts(ctx context.Context, connectionID string) ([]Contact, error) {
	var resp contactsResponse
	if err := s.broker.ProxyCall(ctx, serviceName, connectionID, "/api.xro/2.0/Contacts?page=1", "GET", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch xero contacts: %w", err)
	}
	if resp.Contacts == nil {
		return []Contact{}, nil
	}
	return resp.Contacts, nil
}

// GetAccounts lists the chart of accounts.
func (s *Service) GetAccounts(ctx context.Context, connectionID string) ([]Account, error) {
	var resp accountsResponse
	if err := s.broker.ProxyCall(ctx, serviceName, connectionID, "/api.xro/2.0/Accounts", "GET", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch xero accounts: %w", err)
	}
	if resp.Accounts == nil {
		return []Account{}, nil
	}
	return resp.Accounts, nil
}

// CreateContact creates a contact record.
func (s *Service) CreateContact(ctx context.Context, connectionID string, contact Contact) (*Contact, error) {
	var resp contactsResponse
	err := s.broker.ProxyCall(ctx, serviceName, connectionID, "/api.xro/2.0/Contacts", "POST",
		map[string]any{"Contacts": []Contact{contact}}, &resp)
	if err != nil {
		return nil, fmt.Errorf("create xero contact: %w", err)
	}
	if len(resp.Contacts) == 0 {
		return nil, fmt.Errorf("create xero contact: empty response")
	}
	return &resp.Contacts[0], nil
}

// GetFinancialSummary aggregates receivables, payables and overdue exposure.
// The three invoice queries run concurrently.
func (s *Service) GetFinancialSummary(ctx context.Context, connectionID string) (*FinancialSummary, error) {
	var all, overdue []Invoice

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		all, err = s.GetInvoices(gctx, connectionID)
		return err
	})
	g.Go(func() error {
		var err error
		overdue, err = s.GetOverdueInvoices(gctx, connectionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("xero financial summary: %w", err)
	}

	summary := &FinancialSummary{
		TotalInvoices: len(all),
		OverdueCount:  len(overdue),
	}
	for _, inv := range all {
		if inv.AmountDue == 0 {
			summary.PaidInvoices++
			continue
		}
		switch inv.Type {
		case TypeReceivable:
			summary.TotalReceivables += inv.AmountDue
		case TypePayable:
			summary.TotalPayables += inv.AmountDue
		}
	}
	for _, inv := range overdue {
		summary.OverdueAmount += inv.AmountDue
	}
	return summary, nil
}

func orEmpty(invoices []Invoice) []Invoice {
	if invoices == nil {
		return []Invoice{}
	}
	return invoices
}

func withAmountDue(invoices []Invoice) []Invoice {
	out := []Invoice{}
	for _, inv := range invoices {
		if inv.AmountDue > 0 {
			out = append(out, inv)
		}
	}
	return out
}
