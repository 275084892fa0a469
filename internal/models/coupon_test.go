package models

import (
	"testing"
	"time"
)

func TestCouponIsExpiredInclusiveBoundary(t *testing.T) {
	until := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	coupon := &Coupon{ValidUntil: &until}

	// valid_until 为含边界：恰好等于当前时间不算过期
	if coupon.IsExpired(until) {
		t.Fatalf("coupon should not be expired at valid_until itself")
	}
	if !coupon.IsExpired(until.Add(time.Nanosecond)) {
		t.Fatalf("coupon should be expired just after valid_until")
	}
	if coupon.IsExpired(until.Add(-time.Second)) {
		t.Fatalf("coupon should not be expired before valid_until")
	}

	open := &Coupon{}
	if open.IsExpired(until.Add(24 * time.Hour)) {
		t.Fatalf("coupon without valid_until should never expire")
	}
}

func TestCouponIsActiveAtBoundaries(t *testing.T) {
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	until := from.Add(time.Hour)
	coupon := &Coupon{ValidFrom: &from, ValidUntil: &until}

	if coupon.IsActiveAt(from.Add(-time.Nanosecond)) {
		t.Fatalf("coupon should not be active before valid_from")
	}
	if !coupon.IsActiveAt(from) {
		t.Fatalf("coupon should be active at valid_from")
	}
	if !coupon.IsActiveAt(until) {
		t.Fatalf("coupon should be active at valid_until")
	}
	if coupon.IsActiveAt(until.Add(time.Nanosecond)) {
		t.Fatalf("coupon should not be active after valid_until")
	}
}
