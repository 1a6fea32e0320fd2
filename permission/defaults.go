package permission

// DefaultRoles returns the stock role table in configuration form.
func DefaultRoles() map[string][]string {
	return map[string][]string{
		"admin": {"*:*"},
		"moderator": {
			"read:*",
			"update:posts",
			"delete:posts",
			"update:comments",
			"delete:comments",
		},
		"user": {
			"read:*",
			"create:posts",
			"update:posts",
			"create:comments",
			"read:profile",
			"update:profile",
		},
		"guest": {
			"read:posts",
			"read:comments",
		},
	}
}
