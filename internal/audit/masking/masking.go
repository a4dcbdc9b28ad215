package masking

import "strings"

const maskToken = "****"

// sensitiveKeys are metadata keys whose values identify a bank account,
// wallet or card.
var sensitiveKeys = map[string]struct{}{
	"payment_method": {},
	"account_number": {},
	"destination":    {},
}

// MaskSecret redacts a value while keeping a minimal suffix for auditing.
// A "scheme:" prefix such as "bank:" is kept readable.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, remainder := splitPrefix(trimmed)
	if len(remainder) <= 4 {
		return prefix + maskToken
	}

	return prefix + maskToken + remainder[len(remainder)-4:]
}

// MaskSensitive returns a copy of metadata with sensitive string values
// masked. Other values are kept as-is.
func MaskSensitive(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		if _, ok := sensitiveKeys[strings.ToLower(trimmedKey)]; ok {
			if str, isString := value.(string); isString {
				masked[trimmedKey] = MaskSecret(str)
				continue
			}
		}
		masked[trimmedKey] = value
	}
	return masked
}

func splitPrefix(value string) (string, string) {
	idx := strings.LastIndex(value, ":")
	if idx == -1 || idx == len(value)-1 {
		return "", value
	}
	return value[:idx+1], value[idx+1:]
}
