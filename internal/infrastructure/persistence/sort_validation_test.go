package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"asc", "ASC"},
		{" ASC ", "ASC"},
		{"desc", "DESC"},
		{"", "DESC"},
		{"ASC; DROP TABLE group_orders", "DESC"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateSortOrder(tt.in))
		})
	}
}

func TestValidateSortField(t *testing.T) {
	assert.Equal(t, "name", ValidateSortField("name", GroupSortFields, "created_at"))
	assert.Equal(t, "updated_at", ValidateSortField(" Updated_At ", GroupSortFields, "created_at"))
	assert.Equal(t, "created_at", ValidateSortField("", GroupSortFields, "created_at"))
	assert.Equal(t, "created_at", ValidateSortField("host_user_id", GroupSortFields, "created_at"))
	assert.Equal(t, "created_at", ValidateSortField("name; DELETE FROM group_orders", GroupSortFields, "created_at"))
}

func TestGroupOrderClause(t *testing.T) {
	assert.Equal(t, "created_at DESC, id ASC", groupOrderClause("", ""))
	assert.Equal(t, "name ASC, id ASC", groupOrderClause("name", "asc"))
	assert.Equal(t, "expires_at IS NULL, expires_at ASC, id ASC", groupOrderClause("expires_at", "asc"))
	assert.Equal(t, "created_at DESC, id ASC", groupOrderClause("members", "asc"))
}
