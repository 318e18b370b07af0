package services

import (
	"strconv"
	"strings"
	"time"

	"c5isr-identity/internal/config"
	"c5isr-identity/internal/core/domain"
)

// Device trust scoring
const (
	trustBase       = 50
	userAgentMaxLen = 80

	workdayStartHour = 6
	workdayEndHour   = 22
)

// TrustContext is the request context a trust assessment is computed from
type TrustContext struct {
	UserAgent string
	Origin    string
	Secure    bool
	At        time.Time
}

// DeviceTrustService scores request context. The score is advisory: it is
// attached to audit events and responses but never blocks authentication.
type DeviceTrustService struct {
	knownClients   []string
	trustedOrigins []string
}

// NewDeviceTrustService creates a new device trust evaluator
func NewDeviceTrustService(cfg config.TrustConfig) *DeviceTrustService {
	return &DeviceTrustService{
		knownClients:   cfg.KnownClients,
		trustedOrigins: cfg.TrustedOrigins,
	}
}

// Evaluate scores tc
func (s *DeviceTrustService) Evaluate(tc TrustContext) *domain.DeviceTrust {
	score := trustBase
	factors := make([]domain.TrustFactor, 0, 4)

	add := func(delta int, name, status string) {
		score += delta
		impact := "+0"
		switch {
		case delta > 0:
			impact = "+" + strconv.Itoa(delta)
		case delta < 0:
			impact = strconv.Itoa(delta)
		}
		factors = append(factors, domain.TrustFactor{Factor: name, Impact: impact, Status: status})
	}

	if containsAny(tc.UserAgent, s.knownClients) {
		add(15, "Known Browser", "PASS")
	} else {
		add(-10, "Unknown Browser", "WARN")
	}

	if tc.Secure {
		add(10, "Transport Security", "PASS")
	} else {
		add(0, "Insecure Transport", "WARN")
	}

	if hour := tc.At.UTC().Hour(); hour >= workdayStartHour && hour <= workdayEndHour {
		add(10, "Normal Hours Access", "PASS")
	} else {
		add(-15, "Off-Hours Access", "WARN")
	}

	if tc.Origin != "" && containsAny(tc.Origin, s.trustedOrigins) {
		add(15, "Trusted Origin", "PASS")
	} else {
		add(0, "External Origin", "INFO")
	}

	score = clamp(score, 0, 100)

	ua := tc.UserAgent
	if len(ua) > userAgentMaxLen {
		ua = ua[:userAgentMaxLen]
	}

	return &domain.DeviceTrust{
		Score:     score,
		RiskLevel: RiskBand(score),
		Factors:   factors,
		UserAgent: ua,
	}
}

// RiskBand maps a trust score onto a risk level
func RiskBand(score int) domain.RiskLevel {
	switch {
	case score >= 70:
		return domain.RiskLow
	case score >= 40:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
