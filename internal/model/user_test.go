package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserIsLocked(t *testing.T) {
	now := time.Date(2026, 5, 14, 10, 30, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}

	tests := []struct {
		name        string
		active      bool
		lockedUntil *time.Time
		want        bool
	}{
		{"active, never locked", true, nil, false},
		{"active, lock expires in one second", true, at(time.Second), true},
		{"active, lock expired one second ago", true, at(-time.Second), false},
		{"active, lock expires exactly now", true, at(0), false},
		{"inactive, never locked", false, nil, true},
		{"inactive, lock already expired", false, at(-time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := User{IsActive: tt.active, LockedUntil: tt.lockedUntil}
			assert.Equal(t, tt.want, u.IsLocked(now))
		})
	}
}

func TestUserPermissions(t *testing.T) {
	admin := User{Role: RoleAdmin}
	assert.ElementsMatch(t, AllPermissions, admin.Permissions())

	clerk := User{Role: RoleUser, CanCreateVoucher: true, CanManageCRM: true}
	assert.ElementsMatch(t, []string{PermCreateVoucher, PermManageCRM}, clerk.Permissions())
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(VoucherDraft, VoucherSubmitted))
	assert.True(t, CanTransition(VoucherSubmitted, VoucherApproved))
	assert.False(t, CanTransition(VoucherDraft, VoucherApproved))
	assert.False(t, CanTransition(VoucherApproved, VoucherRejected))
	assert.False(t, CanTransition(VoucherRejected, VoucherDraft))
}
