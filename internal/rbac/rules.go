package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"attempt:start",
		"attempt:answer",
		"attempt:complete",
		"attempt:view-own",
	},
	"teacher": {
		"test:create",
		"attempt:view-all",
	},
	"admin": {
		"*", // everything
	},
}
