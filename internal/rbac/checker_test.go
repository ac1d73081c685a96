package rbac

import "testing"

func TestCheckerDefaults(t *testing.T) {
	c := NewChecker(nil)

	cases := []struct {
		role, perm string
		want       bool
	}{
		{"student", "attempt:start", true},
		{"student", "test:create", false},
		{"teacher", "test:create", true},
		{"teacher", "attempt:view-all", true},
		{"teacher", "attempt:answer", false},
		{"admin", "anything:at-all", true},
		{"", "attempt:start", false},
	}
	for _, tc := range cases {
		if got := c.Has(tc.role, tc.perm); got != tc.want {
			t.Errorf("Has(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}

	if !c.Any("student", "attempt:view-own", "attempt:view-all") {
		t.Error("student should match view-own via Any")
	}
	if c.Any("teacher", "attempt:answer", "attempt:complete") {
		t.Error("teacher should not match student perms")
	}
}

func TestMatchPermWildcard(t *testing.T) {
	if !matchPerm("attempt:*", "attempt:start") {
		t.Error("prefix wildcard should match")
	}
	if matchPerm("attempt:*", "test:create") {
		t.Error("prefix wildcard should not cross namespaces")
	}
}
