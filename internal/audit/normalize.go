package audit

import (
	"encoding/json"
	"fmt"
	"strings"

	"adora/internal/domain"
)

// Accessor interfaces for issue types that expose their fields as methods.
type (
	coder     interface{ Code() string }
	messager  interface{ Message() string }
	severitor interface{ Severity() string }
)

// Normalize coerces item into the canonical issue shape. It never panics;
// a failure while inspecting item yields a NORMALIZE_ERROR placeholder.
func Normalize(item any) (issue domain.ValidationIssue) {
	defer func() {
		if r := recover(); r != nil {
			issue = domain.ValidationIssue{
				Code:     domain.CodeNormalizeError,
				Message:  fmt.Sprintf("could not normalize issue: %v", r),
				Severity: domain.SeverityWarning,
			}
		}
	}()
	return normalize(item)
}

func normalize(item any) domain.ValidationIssue {
	switch v := item.(type) {
	case nil:
		return fill("", "", "", "")
	case domain.ValidationIssue:
		return fill(string(v.Code), v.Message, string(v.Severity), "")
	case *domain.ValidationIssue:
		if v == nil {
			return fill("", "", "", "")
		}
		return fill(string(v.Code), v.Message, string(v.Severity), "")
	case map[string]string:
		return fill(v["code"], v["message"], v["severity"], fmt.Sprint(v))
	case map[string]any:
		return fromMap(v, fmt.Sprint(v))
	case string:
		return fill("", v, "", v)
	}

	var code, msg, sev string
	matched := false
	if c, ok := item.(coder); ok {
		code, matched = c.Code(), true
	}
	if m, ok := item.(messager); ok {
		msg, matched = m.Message(), true
	}
	if s, ok := item.(severitor); ok {
		sev, matched = s.Severity(), true
	}
	if matched {
		return fill(code, msg, sev, bestString(item))
	}
	if err, ok := item.(error); ok {
		return fill("", err.Error(), "", "")
	}
	if fields, ok := asJSONObject(item); ok {
		return fromMap(fields, bestString(item))
	}
	return fill("", "", "", bestString(item))
}

func fromMap(m map[string]any, repr string) domain.ValidationIssue {
	str := func(key string) string {
		v, ok := m[key]
		if !ok || v == nil {
			return ""
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return fill(str("code"), str("message"), str("severity"), repr)
}

// asJSONObject exposes struct fields through their JSON names.
func asJSONObject(item any) (map[string]any, bool) {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

func bestString(item any) string {
	switch v := item.(type) {
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	}
	if raw, err := json.Marshal(item); err == nil {
		return string(raw)
	}
	return fmt.Sprintf("%+v", item)
}

func fill(code, msg, sev, fallbackMsg string) domain.ValidationIssue {
	code = strings.TrimSpace(code)
	if code == "" {
		code = string(domain.CodeUnknown)
	}
	if strings.TrimSpace(msg) == "" {
		msg = fallbackMsg
	}
	severity := domain.SeverityWarning
	if strings.EqualFold(strings.TrimSpace(sev), string(domain.SeverityError)) {
		severity = domain.SeverityError
	}
	return domain.ValidationIssue{Code: domain.IssueCode(code), Message: msg, Severity: severity}
}
