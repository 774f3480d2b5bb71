// Package license holds the license administration commands.
package license

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	licensingApp "github.com/lycebot/premium/internal/licensing/application"
	"github.com/lycebot/premium/internal/licensing/domain"
)

// Cmd is the license command group.
var Cmd = &cobra.Command{
	Use:   "license",
	Short: "Issue, activate and revoke license keys",
	Long:  `Manage license keys and the premium status of tenants.`,
}

// failure turns an operation error into the message a tenant owner would see,
// keeping the machine-readable reason in front.
func failure(err error) error {
	res := licensingApp.Outcome(err)
	return fmt.Errorf("%s: %s", res.Reason, res.Message)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format("January 2, 2006")
}

func printView(w io.Writer, v *domain.View) {
	if !v.IsPremium {
		fmt.Fprintf(w, "Tenant %s: free tier\n", v.TenantID)
		return
	}
	fmt.Fprintf(w, "Tenant %s: %s\n", v.TenantID, v.TierName)
	fmt.Fprintf(w, "Activated: %s\n", formatDate(v.ActivatedAt))
	fmt.Fprintf(w, "Expires:   %s\n", formatDate(v.ExpiresAt))
	fmt.Fprintf(w, "Features (%d):\n", len(v.Features))
	for _, f := range v.Features {
		fmt.Fprintf(w, "  - %s\n", f)
	}
}

func printLicense(w io.Writer, l *domain.License) {
	fmt.Fprintf(w, "Key:       %s\n", l.Key)
	fmt.Fprintf(w, "Tier:      %s\n", l.Tier)
	fmt.Fprintf(w, "Status:    %s\n", l.Status)
	if l.TenantID != "" {
		fmt.Fprintf(w, "Tenant:    %s\n", l.TenantID)
	}
	if l.PurchaserID != "" {
		fmt.Fprintf(w, "Purchaser: %s\n", l.PurchaserID)
	}
	if l.ActivatedAt != nil {
		fmt.Fprintf(w, "Activated: %s\n", formatDate(l.ActivatedAt))
	}
	fmt.Fprintf(w, "Expires:   %s\n", formatDate(l.ExpiresAt))
	if l.EndedAt != nil {
		fmt.Fprintf(w, "Ended:     %s\n", formatDate(l.EndedAt))
	}
	if l.Note != "" {
		fmt.Fprintf(w, "Note:      %s\n", l.Note)
	}
}

func printRevocation(w io.Writer, rev *licensingApp.Revocation) {
	if !rev.Revoked {
		fmt.Fprintln(w, "Nothing to revoke.")
		return
	}
	if rev.License != nil {
		fmt.Fprintf(w, "Revoked license %s", domain.MaskKey(rev.License.Key))
	} else {
		fmt.Fprint(w, "Revoked premium")
	}
	if rev.TenantID != "" {
		fmt.Fprintf(w, " for tenant %s", rev.TenantID)
	}
	fmt.Fprintln(w, ".")
}

// parseExpiry accepts RFC 3339 timestamps or plain dates.
func parseExpiry(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid expiry %q (want YYYY-MM-DD or RFC 3339)", s)
}
