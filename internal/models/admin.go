package models

// CacheStats describes the metrics response cache.
type CacheStats struct {
	Backend string `json:"backend"`
	// Entries is -1 when the backend cannot count cheaply.
	Entries int `json:"entries"`
	TTL     int `json:"ttlSeconds"`
}

// CacheClearResponse is returned after flushing the response cache.
type CacheClearResponse struct {
	Cleared int    `json:"cleared"`
	Message string `json:"message"`
}

// CredentialInvalidation is returned after dropping a shared vendor credential.
type CredentialInvalidation struct {
	System      string `json:"system"`
	Invalidated bool   `json:"invalidated"`
}

// RoleLookup is the resolved role set of a user.
type RoleLookup struct {
	User  string   `json:"user"`
	Roles []string `json:"roles"`
}

// RoleAssignment grants Roles to User. It is the row shape of the role store
// and the element shape of configs/roles.json.
type RoleAssignment struct {
	User  string   `json:"username"`
	Roles []string `json:"roles"`
}
