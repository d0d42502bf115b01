package service

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"anoa.com/tutorhub/internal/entity"
	"anoa.com/tutorhub/pkg/apperror"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const DefaultCurrency = "NGN"

var platformLabels = map[string]string{
	"zoom":        "Zoom",
	"google_meet": "Google Meet",
}

// Accepted scheduled date layouts, most specific first.
var scheduledLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// paymentMethodLabel turns "bank_transfer" into "Bank Transfer".
func paymentMethodLabel(method string) string {
	words := strings.Fields(strings.ReplaceAll(method, "_", " "))
	return cases.Title(language.English).String(strings.Join(words, " "))
}

func platformLabel(platform string) string {
	platform = strings.TrimSpace(platform)
	if label, ok := platformLabels[strings.ToLower(platform)]; ok {
		return label
	}
	if platform == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(platform)
	return string(unicode.ToUpper(r)) + platform[size:]
}

func currencyOrDefault(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return DefaultCurrency
	}
	return currency
}

// formatAmount renders 50000 as "50,000.00".
func formatAmount(amount float64) string {
	return message.NewPrinter(language.English).Sprintf("%.2f", amount)
}

func amountLabel(currency string, amount float64) string {
	return fmt.Sprintf("%s %s", currency, formatAmount(amount))
}

func parseScheduledDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, apperror.Validation("scheduled date is required")
	}
	for _, layout := range scheduledLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperror.Validation(fmt.Sprintf("scheduled date %q is not a valid ISO-8601 date", s))
}

func formatScheduled(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("Monday, 2 January 2006")
	}
	return t.Format("Monday, 2 January 2006 at 15:04 MST")
}

func formatRequestDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2 January 2006")
}

func baseURL(appURL string) string {
	return strings.TrimRight(appURL, "/")
}

// payoutActionURL sends teachers to the payout itself and everyone else to
// their wallet.
func payoutActionURL(appURL string, role entity.Role, requestID *uuid.UUID) string {
	if role != entity.RoleTeacher {
		return baseURL(appURL) + "/wallet"
	}
	if requestID == nil {
		return baseURL(appURL) + "/teacher/payouts"
	}
	return fmt.Sprintf("%s/teacher/payouts/%s", baseURL(appURL), requestID.String())
}

func verificationActionURL(appURL string) string {
	return baseURL(appURL) + "/teacher/verification"
}
