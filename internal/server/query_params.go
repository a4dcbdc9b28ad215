package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
)

func parseSnowflakeID(value string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, ErrInvalidRequest
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed <= 0 {
		return 0, ErrInvalidRequest
	}
	return parsed, nil
}

func technicianIDParam(value string) (snowflake.ID, error) {
	id, err := parseSnowflakeID(value)
	if err != nil {
		return 0, newValidationError("technician_id", "invalid_technician_id", "invalid technician id")
	}
	return id, nil
}

func payoutIDParam(value string) (snowflake.ID, error) {
	id, err := parseSnowflakeID(value)
	if err != nil {
		return 0, newValidationError("payout_id", "invalid_payout_id", "invalid payout id")
	}
	return id, nil
}

func parseOptionalInt(value string, fallback int) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed < 0 {
		return 0, ErrInvalidRequest
	}
	return parsed, nil
}
