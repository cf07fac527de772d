package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
	"github.com/kirillkom/calibration-tracker/internal/core/ports"
)

type matchRule struct {
	identifier func(domain.NormalizedCertificate) string
	field      domain.IdentifierField
	mode       domain.MatchMode
	minLen     int
	tag        string
}

func equipmentID(c domain.NormalizedCertificate) string { return strings.TrimSpace(c.EquipmentID) }
func serialNumber(c domain.NormalizedCertificate) string { return strings.TrimSpace(c.SerialNumber) }

// certificateRules is evaluated in order; the first hit wins. Exact rules
// precede containment rules.
var certificateRules = []matchRule{
	{identifier: equipmentID, field: domain.FieldToolIDNumber, mode: domain.MatchEqualFold, tag: "equipment_id"},
	{identifier: equipmentID, field: domain.FieldStickerID, mode: domain.MatchEqualFold, tag: "sticker_id"},
	{identifier: equipmentID, field: domain.FieldLogNumber, mode: domain.MatchEqualFold, tag: "log_number"},
	{identifier: serialNumber, field: domain.FieldSerialNumber, mode: domain.MatchEqualFold, tag: "serial_number"},
	{identifier: equipmentID, field: domain.FieldToolIDNumber, mode: domain.MatchContainsFold, minLen: 3, tag: "equipment_id_contains"},
	{identifier: serialNumber, field: domain.FieldSerialNumber, mode: domain.MatchContainsFold, minLen: 4, tag: "serial_contains"},
}

// minModelTokenLen guards model-number containment in token mode.
const minModelTokenLen = 4

type IdentifierMatcher struct{}

func NewIdentifierMatcher() *IdentifierMatcher {
	return &IdentifierMatcher{}
}

// Match runs the rule chain for one certificate. A zero MatchResult means no match.
func (m *IdentifierMatcher) Match(ctx context.Context, tools ports.ToolRepository, cert domain.NormalizedCertificate) (domain.MatchResult, error) {
	for i, rule := range certificateRules {
		value := rule.identifier(cert)
		if value == "" || len(value) < rule.minLen {
			continue
		}
		tool, ok, err := tools.FindFirst(ctx, rule.field, value, rule.mode)
		if err != nil {
			return domain.MatchResult{}, fmt.Errorf("match rule %s: %w", rule.tag, err)
		}
		if !ok {
			continue
		}
		return domain.MatchResult{
			Tool:  tool,
			Field: rule.field,
			Value: value,
			Rank:  i + 1,
			Tag:   rule.tag + "=" + value,
		}, nil
	}
	return domain.MatchResult{}, nil
}

// MatchTokens matches free-text identifier tokens against every tool. Each
// tool is matched at most once by its first qualifying token.
func (m *IdentifierMatcher) MatchTokens(ctx context.Context, tools ports.ToolRepository, tokens []string) ([]domain.MatchResult, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	all, err := tools.List(ctx, domain.ToolFilter{})
	if err != nil {
		return nil, fmt.Errorf("list tools for token match: %w", err)
	}

	lowered := make([]string, len(tokens))
	for i, tok := range tokens {
		lowered[i] = strings.ToLower(tok)
	}

	var results []domain.MatchResult
	for i := range all {
		tool := &all[i]
		log := strings.ToLower(tool.LogNumber)
		serial := strings.ToLower(tool.SerialNumber)
		sticker := strings.ToLower(tool.StickerID)
		model := strings.ToLower(tool.ModelNumber)

		for j, tok := range lowered {
			var field domain.IdentifierField
			var tag string
			switch {
			case log != "" && log == tok:
				field, tag = domain.FieldLogNumber, "log_number"
			case serial != "" && strings.Contains(serial, tok):
				field, tag = domain.FieldSerialNumber, "serial_contains"
			case sticker != "" && strings.Contains(sticker, tok):
				field, tag = domain.FieldStickerID, "sticker_contains"
			case model != "" && len(tok) >= minModelTokenLen && strings.Contains(model, tok):
				field, tag = domain.FieldModelNumber, "model_contains"
			default:
				continue
			}
			results = append(results, domain.MatchResult{
				Tool:  tool,
				Field: field,
				Value: tokens[j],
				Tag:   tag + "=" + tokens[j],
			})
			break
		}
	}
	return results, nil
}

var identifierToken = regexp.MustCompile(`[A-Za-z0-9](?:[A-Za-z0-9.\-]*[A-Za-z0-9])?`)

// IdentifierTokens collects candidate identifiers from a filename and text:
// alphanumeric runs of at least 3 characters containing a digit. Filename
// tokens come first.
func IdentifierTokens(filename, text string) []string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, source := range []string{strings.TrimSuffix(filename, filepath.Ext(filename)), text} {
		for _, tok := range identifierToken.FindAllString(source, -1) {
			if len(tok) < 3 || !strings.ContainsAny(tok, "0123456789") {
				continue
			}
			key := strings.ToLower(tok)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
