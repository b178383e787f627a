package sml

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// Well-known SML DNS zones.
const (
	ZoneProduction = "edelivery.tech.ec.europa.eu"
	ZoneAcceptance = "acc.edelivery.tech.ec.europa.eu"
)

// ErrNotInDNS is returned when no CNAME record exists for the
// participant in the SML zone.
var ErrNotInDNS = errors.New("participant not present in SML DNS zone")

// Verifier checks SML state through DNS rather than the management API.
// The SML publishes every registered participant as a CNAME record named
// B-<md5(value)>.<scheme>.<zone>; resolving it confirms the registration
// actually propagated. Verification is diagnostic only and never part of
// the registration saga.
type Verifier struct {
	// Zone is the SML DNS zone, e.g. "edelivery.tech.ec.europa.eu"
	Zone string

	// DNSServer is the DNS server for lookups (optional).
	// Format: "ip:port". If empty, a well-known public resolver is used.
	DNSServer string

	// Timeout bounds a single DNS exchange
	Timeout time.Duration
}

// ParticipantDNSName computes the SML DNS name for a participant:
// B-<md5hex(lowercase value)>.<scheme>.<zone>.
func ParticipantDNSName(p identifier.Participant, zone string) string {
	sum := md5.Sum([]byte(strings.ToLower(p.Value)))
	return fmt.Sprintf("B-%s.%s.%s", hex.EncodeToString(sum[:]), p.Scheme, zone)
}

// Verify resolves the participant's CNAME in the SML zone and returns
// the target host, or ErrNotInDNS when the zone has no record.
func (v *Verifier) Verify(ctx context.Context, p identifier.Participant) (string, error) {
	name := dns.Fqdn(ParticipantDNSName(p, v.Zone))

	server := v.DNSServer
	if server == "" {
		server = "8.8.8.8:53"
	}
	timeout := v.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	m := new(dns.Msg)
	m.SetQuestion(name, dns.TypeCNAME)
	m.RecursionDesired = true

	client := &dns.Client{Timeout: timeout}
	resp, _, err := client.ExchangeContext(ctx, m, server)
	if err != nil {
		return "", fmt.Errorf("SML DNS lookup for %s: %w", name, err)
	}
	if resp.Rcode == dns.RcodeNameError {
		return "", ErrNotInDNS
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("SML DNS lookup for %s returned rcode %d", name, resp.Rcode)
	}

	for _, rr := range resp.Answer {
		if cname, ok := rr.(*dns.CNAME); ok {
			return strings.TrimSuffix(cname.Target, "."), nil
		}
	}
	return "", ErrNotInDNS
}
