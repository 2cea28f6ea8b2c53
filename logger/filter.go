package logger

import (
	"net/url"
	"regexp"
	"strings"
)

// DefaultMaskValue replaces sensitive values in log output.
const DefaultMaskValue = "***"

// FilterConfig lists the field names considered sensitive.
type FilterConfig struct {
	SensitiveFields []string
	MaskValue       string
}

// DefaultFilterConfig covers credentials and connection strings.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password", "passwd", "pwd", "secret",
			"token", "credential", "credentials",
			"connectionstring", "connection_string", "dsn",
		},
		MaskValue: DefaultMaskValue,
	}
}

// keyword/value DSNs (libpq style) carry the password inline.
var inlinePasswordPattern = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|\S+)`)

// SensitiveDataFilter masks sensitive values before they reach the log writer.
type SensitiveDataFilter struct {
	fields map[string]struct{}
	mask   string
}

// NewSensitiveDataFilter builds a filter. A nil config selects DefaultFilterConfig.
func NewSensitiveDataFilter(cfg *FilterConfig) *SensitiveDataFilter {
	if cfg == nil {
		cfg = DefaultFilterConfig()
	}
	mask := cfg.MaskValue
	if mask == "" {
		mask = DefaultMaskValue
	}
	fields := make(map[string]struct{}, len(cfg.SensitiveFields))
	for _, f := range cfg.SensitiveFields {
		fields[strings.ToLower(f)] = struct{}{}
	}
	return &SensitiveDataFilter{fields: fields, mask: mask}
}

func (f *SensitiveDataFilter) isSensitive(key string) bool {
	lower := strings.ToLower(key)
	if _, ok := f.fields[lower]; ok {
		return true
	}
	for field := range f.fields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}

// FilterString masks value when key is sensitive. Non-sensitive values that look like
// connection URLs or keyword DSNs have their password component masked.
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if f.isSensitive(key) {
		return f.mask
	}
	return f.maskEmbeddedPassword(value)
}

// FilterValue masks value when key is sensitive, recursing into map[string]any.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	if f.isSensitive(key) {
		return f.mask
	}
	switch v := value.(type) {
	case string:
		return f.maskEmbeddedPassword(v)
	case map[string]any:
		return f.FilterFields(v)
	default:
		return value
	}
}

// FilterFields returns a filtered copy of fields.
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return fields
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = f.FilterValue(k, v)
	}
	return out
}

func (f *SensitiveDataFilter) maskEmbeddedPassword(value string) string {
	if strings.Contains(value, "://") {
		if u, err := url.Parse(value); err == nil && u.User != nil {
			if _, hasPassword := u.User.Password(); hasPassword {
				u.User = url.UserPassword(u.User.Username(), f.mask)
				return u.String()
			}
		}
	}
	if inlinePasswordPattern.MatchString(value) {
		return inlinePasswordPattern.ReplaceAllString(value, "${1}"+f.mask)
	}
	return value
}
