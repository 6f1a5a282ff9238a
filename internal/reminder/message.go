package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/lalithlochan/subtrack/internal/billing"
	"github.com/lalithlochan/subtrack/internal/db"
)

// AccountPlaceholder replaces an account name that could not be decrypted.
const AccountPlaceholder = "(unavailable)"

// Evaluate returns the whole days from today until the subscription renews
// and whether that offset is one of its configured reminder days.
func Evaluate(sub *db.Subscription, today time.Time) (int, bool) {
	days := billing.DaysUntil(sub.RenewalDate, today)
	return days, sub.HasReminderAt(days)
}

// Urgency returns the marker leading a reminder: most urgent within a day,
// elevated within three.
func Urgency(daysUntil int) string {
	switch {
	case daysUntil <= 1:
		return "🔴"
	case daysUntil <= 3:
		return "🟠"
	default:
		return "🔔"
	}
}

func when(daysUntil int) string {
	switch {
	case daysUntil < 0:
		return fmt.Sprintf("was due %d days ago", -daysUntil)
	case daysUntil == 0:
		return "today"
	case daysUntil == 1:
		return "tomorrow"
	default:
		return fmt.Sprintf("in %d days", daysUntil)
	}
}

// Subject is the one-line summary used by channels that carry a subject.
func Subject(sub *db.Subscription, daysUntil int) string {
	return fmt.Sprintf("%s renews %s", sub.ServiceName, when(daysUntil))
}

// FormatMessage renders the reminder text. account is the display form of
// the account name (already masked, or the placeholder); an empty account
// omits the line, as does an empty payment method.
func FormatMessage(sub *db.Subscription, daysUntil int, account string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s Renewal reminder: %s\n", Urgency(daysUntil), sub.ServiceName)
	fmt.Fprintf(&b, "Renews %s (%s)\n", when(daysUntil), sub.RenewalDate.Format(time.DateOnly))
	fmt.Fprintf(&b, "Cost: %.2f %s", sub.Cost, sub.Currency)

	if sub.PaymentMethod != "" {
		fmt.Fprintf(&b, "\nPayment method: %s", sub.PaymentMethod)
	}
	if account != "" {
		fmt.Fprintf(&b, "\nAccount: %s", account)
	}

	return b.String()
}
