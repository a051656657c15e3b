package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mmynk/savingcircle/internal/calculator"
	"github.com/mmynk/savingcircle/internal/models"
)

// printer localizes counts, e.g. 1,024 members.
var printer = message.NewPrinter(language.English)

// money formats an amount with digit grouping, e.g. $1,234.50. The digits come
// from the decimal itself, so amounts of any size print exactly.
func money(d decimal.Decimal) string {
	d = d.Round(2)
	whole, frac, _ := strings.Cut(d.Abs().StringFixed(2), ".")
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return sign + "$" + groupThousands(whole) + "." + frac
}

func groupThousands(digits string) string {
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}
	var b strings.Builder
	b.WriteString(digits[:min(head, len(digits))])
	for i := head; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

type groupView struct {
	ID           string            `json:"id" yaml:"id"`
	Name         string            `json:"name" yaml:"name"`
	Description  string            `json:"description,omitempty" yaml:"description,omitempty"`
	Target       string            `json:"target_amount" yaml:"target_amount"`
	Current      string            `json:"current_amount" yaml:"current_amount"`
	Progress     string            `json:"progress" yaml:"progress"`
	Pending      string            `json:"pending_withdrawals,omitempty" yaml:"pending_withdrawals,omitempty"`
	CreatedAt    string            `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	MemberCount  int               `json:"members_count" yaml:"members_count"`
	Members      []memberView      `json:"members,omitempty" yaml:"members,omitempty"`
	Transactions []transactionView `json:"transactions,omitempty" yaml:"transactions,omitempty"`
	Withdrawals  []withdrawalView  `json:"withdrawals,omitempty" yaml:"withdrawals,omitempty"`
}

type memberView struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Email   string `json:"email,omitempty" yaml:"email,omitempty"`
	IsAdmin bool   `json:"is_admin" yaml:"is_admin"`
	// Set only in detail views.
	Deposited string `json:"deposited,omitempty" yaml:"deposited,omitempty"`
	Withdrawn string `json:"withdrawn,omitempty" yaml:"withdrawn,omitempty"`
}

type transactionView struct {
	ID          string `json:"id" yaml:"id"`
	Kind        string `json:"type" yaml:"type"`
	Amount      string `json:"amount" yaml:"amount"`
	User        string `json:"user" yaml:"user"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Timestamp   string `json:"timestamp" yaml:"timestamp"`
	Provisional bool   `json:"provisional,omitempty" yaml:"provisional,omitempty"`
}

type withdrawalView struct {
	ID          string `json:"id" yaml:"id"`
	Amount      string `json:"amount" yaml:"amount"`
	User        string `json:"user" yaml:"user"`
	Reason      string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Status      string `json:"status" yaml:"status"`
	Timestamp   string `json:"timestamp" yaml:"timestamp"`
	ProcessedAt string `json:"processed_at,omitempty" yaml:"processed_at,omitempty"`
	Provisional bool   `json:"provisional,omitempty" yaml:"provisional,omitempty"`
}

type userView struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Email  string `json:"email" yaml:"email"`
	Avatar string `json:"avatar,omitempty" yaml:"avatar,omitempty"`
}

func newGroupView(g models.Group, detail bool) groupView {
	v := groupView{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Target:      g.TargetAmount.StringFixed(2),
		Current:     g.CurrentAmount.StringFixed(2),
		Progress:    g.Progress().StringFixed(0) + "%",
		CreatedAt:   formatTime(g.CreatedDate),
		MemberCount: max(g.MemberCount, len(g.Members)),
	}
	if !detail {
		return v
	}
	if pending := calculator.Pending(g.WithdrawalRequests); pending.IsPositive() {
		v.Pending = pending.StringFixed(2)
	}
	balances := balancesByMember(g)
	for _, m := range g.Members {
		b := balances[m.ID]
		v.Members = append(v.Members, memberView{
			ID:        m.ID,
			Name:      m.Name,
			Email:     m.Email,
			IsAdmin:   m.IsAdmin,
			Deposited: b.Deposited.StringFixed(2),
			Withdrawn: b.Withdrawn.StringFixed(2),
		})
	}
	for _, tx := range g.Transactions {
		v.Transactions = append(v.Transactions, transactionView{
			ID:          tx.ID,
			Kind:        string(tx.Kind),
			Amount:      tx.Amount.StringFixed(2),
			User:        tx.UserName,
			Description: tx.Description,
			Timestamp:   formatTime(tx.Timestamp),
			Provisional: tx.Provisional,
		})
	}
	for _, r := range g.WithdrawalRequests {
		v.Withdrawals = append(v.Withdrawals, withdrawalView{
			ID:          r.ID,
			Amount:      r.Amount.StringFixed(2),
			User:        r.UserName,
			Reason:      r.Reason,
			Status:      string(r.Status),
			Timestamp:   formatTime(r.Timestamp),
			ProcessedAt: formatTime(r.ProcessedAt),
			Provisional: r.Provisional,
		})
	}
	return v
}

func balancesByMember(g models.Group) map[string]calculator.MemberBalance {
	byID := make(map[string]calculator.MemberBalance)
	for _, b := range calculator.MemberBalances(g) {
		byID[b.MemberID] = b
	}
	return byID
}

func newGroupViews(groups []models.Group) []groupView {
	views := make([]groupView, len(groups))
	for i, g := range groups {
		views[i] = newGroupView(g, false)
	}
	return views
}

func newUserView(u models.User) userView {
	return userView{ID: u.ID, Name: u.Name, Email: u.Email, Avatar: u.Avatar}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// writeGroupTable prints one line per group.
func writeGroupTable(w io.Writer, groups []models.Group) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "No groups.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSAVED\tTARGET\tPROGRESS\tMEMBERS")
	for _, g := range groups {
		printer.Fprintf(tw, "%s\t%s\t%s\t%s\t%s%%\t%d\n",
			g.ID, g.Name, money(g.CurrentAmount), money(g.TargetAmount),
			g.Progress().StringFixed(0), max(g.MemberCount, len(g.Members)))
	}
	tw.Flush()
}

// writeGroupDetail prints a group with its members and ledger.
func writeGroupDetail(w io.Writer, g models.Group) {
	fmt.Fprintf(w, "%s (%s)\n", g.Name, g.ID)
	if g.Description != "" {
		fmt.Fprintf(w, "  %s\n", g.Description)
	}
	fmt.Fprintf(w, "Saved %s of %s (%s%%)\n", money(g.CurrentAmount), money(g.TargetAmount), g.Progress().StringFixed(0))

	if pending := calculator.Pending(g.WithdrawalRequests); pending.IsPositive() {
		fmt.Fprintf(w, "Pending withdrawals: %s\n", money(pending))
	}

	printer.Fprintf(w, "\nMembers (%d):\n", len(g.Members))
	balances := balancesByMember(g)
	mw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, m := range g.Members {
		role := ""
		if m.IsAdmin {
			role = " [admin]"
		}
		b := balances[m.ID]
		fmt.Fprintf(mw, "  %s%s\tin %s\tout %s\n", m.Name, role, money(b.Deposited), money(b.Withdrawn))
	}
	mw.Flush()

	if len(g.Transactions) > 0 {
		fmt.Fprintln(w, "\nTransactions:")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, tx := range g.Transactions {
			sign := "+"
			if tx.Kind == models.Withdrawal {
				sign = "-"
			}
			fmt.Fprintf(tw, "  %s\t%s%s\t%s\t%s%s\n",
				tx.Timestamp.Local().Format("2006-01-02 15:04"), sign, money(tx.Amount),
				tx.UserName, tx.Description, pendingMark(tx.Provisional))
		}
		tw.Flush()
	}

	if len(g.WithdrawalRequests) > 0 {
		fmt.Fprintln(w, "\nWithdrawal requests:")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, r := range g.WithdrawalRequests {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s%s\n",
				r.ID, money(r.Amount), r.UserName, r.Status, r.Reason, pendingMark(r.Provisional))
		}
		tw.Flush()
	}
}

func pendingMark(provisional bool) string {
	if provisional {
		return " (unconfirmed)"
	}
	return ""
}
