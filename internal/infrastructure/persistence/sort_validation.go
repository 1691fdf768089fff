package persistence

import (
	"fmt"
	"strings"
)

const (
	defaultGroupSortField = "created_at"
	defaultSortOrder      = "DESC"
)

// GroupSortFields whitelists the group_orders columns a list may be ordered by.
// Values reach ORDER BY verbatim, so nothing outside this set is accepted.
var GroupSortFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"expires_at": true,
	"name":       true,
	"status":     true,
}

// ValidateSortOrder normalizes the direction to ASC or DESC, DESC when unrecognized
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "asc") {
		return "ASC"
	}
	return defaultSortOrder
}

// ValidateSortField returns sortField when it is whitelisted, otherwise defaultField
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.ToLower(strings.TrimSpace(sortField))
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// groupOrderClause builds the ORDER BY for group lists. id breaks ties so
// pagination stays stable when the sort column repeats.
func groupOrderClause(sortBy, sortOrder string) string {
	field := ValidateSortField(sortBy, GroupSortFields, defaultGroupSortField)
	dir := ValidateSortOrder(sortOrder)
	if field == "expires_at" {
		// groups without a deadline go last whichever way
		return fmt.Sprintf("expires_at IS NULL, expires_at %s, id ASC", dir)
	}
	return fmt.Sprintf("%s %s, id ASC", field, dir)
}
