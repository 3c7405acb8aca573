package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"section:view",
		"submit:answers",
		"submit:recording",
		"submit:essay",
		"review:view-own",
	},
	"reviewer": {
		"section:view",
		"review:view-any",
		"review:write",
	},
	"admin": {
		"*", // everything
	},
}
