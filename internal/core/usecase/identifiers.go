package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
	"github.com/kirillkom/calibration-tracker/internal/core/parsing"
	"github.com/kirillkom/calibration-tracker/internal/core/ports"
)

// maxSuffixAttempts bounds re-suffixing of synthesized identifiers.
const maxSuffixAttempts = 1000

// UUIDGenerator is the production IdentifierGenerator.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

func (UUIDGenerator) Suffix(n int) string {
	buf := make([]byte, (n+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return strings.Repeat("0", n)
	}
	return hex.EncodeToString(buf)[:n]
}

// uniqueIdentifier returns base, or base-N for the smallest N >= 2 that no
// tool uses yet in field.
func uniqueIdentifier(ctx context.Context, tools ports.ToolRepository, field domain.IdentifierField, base string) (string, error) {
	candidate := base
	for n := 2; n < maxSuffixAttempts; n++ {
		_, taken, err := tools.FindFirst(ctx, field, candidate, domain.MatchEqualFold)
		if err != nil {
			return "", fmt.Errorf("check %s %q: %w", field, candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	return "", domain.WrapError(domain.ErrConflict, "unique identifier", fmt.Errorf("no free %s for %q", field, base))
}

// ToolSynthesizer creates new tools from certificate fields.
type ToolSynthesizer struct {
	ids ports.IdentifierGenerator
	now func() time.Time
}

func NewToolSynthesizer(ids ports.IdentifierGenerator, now func() time.Time) *ToolSynthesizer {
	if ids == nil {
		ids = UUIDGenerator{}
	}
	if now == nil {
		now = time.Now
	}
	return &ToolSynthesizer{ids: ids, now: now}
}

// FromCertificate builds and persists a tool whose identifiers are unique in the store.
func (s *ToolSynthesizer) FromCertificate(
	ctx context.Context,
	tools ports.ToolRepository,
	cert domain.NormalizedCertificate,
	strategy parsing.Strategy,
) (*domain.Tool, error) {
	logBase := "CERT-" + strings.TrimSpace(cert.EquipmentID)
	if strings.TrimSpace(cert.EquipmentID) == "" {
		logBase = "CERT-" + s.ids.Suffix(6)
	}
	logNumber, err := uniqueIdentifier(ctx, tools, domain.FieldLogNumber, logBase)
	if err != nil {
		return nil, err
	}

	serialBase := strings.TrimSpace(cert.SerialNumber)
	if serialBase == "" {
		serialBase = "NOSN-CERT-" + s.ids.Suffix(6)
	}
	serial, err := uniqueIdentifier(ctx, tools, domain.FieldSerialNumber, serialBase)
	if err != nil {
		return nil, err
	}

	name := firstNonEmpty(cert.Description, cert.ToolType, "Unknown Tool")
	schedule := strategy.DefaultSchedule
	if schedule == "" {
		schedule = domain.ScheduleAnnual
	}
	now := s.now().UTC()
	tool := &domain.Tool{
		ID:           s.ids.NewID(),
		Name:         name,
		Description:  cert.Description,
		ToolType:     cert.ToolType,
		Manufacturer: cert.Manufacturer,
		ModelNumber:  cert.ModelNumber,
		SerialNumber: serial,
		LogNumber:    logNumber,
		ToolIDNumber: cert.EquipmentID,
		Location:     joinNonEmpty(" / ", cert.Building, cert.Floor, cert.Room),
		Schedule:     schedule,
		Status:       domain.ToolActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tools.Create(ctx, tool); err != nil {
		return nil, fmt.Errorf("create synthesized tool: %w", err)
	}
	return tool, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(sep string, values ...string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}
