package domain

import "time"

// Tenant is an account that owns game-server instances. Registration and
// credential storage live outside this service; tenants arrive here already
// authenticated, carrying only what the control plane needs.
type Tenant struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Quota    int    `json:"quota"`     // max concurrently owned instances
	APIToken string `json:"api_token"` // bearer credential for the admin API
}

// Instance represents one provisioned game-server container, addressed
// externally by its subdomain.
type Instance struct {
	ID          string    `json:"id"` // uuid, also the storage-directory key
	Subdomain   string    `json:"subdomain"`
	ContainerID string    `json:"container_id"`
	RconPort    int       `json:"rcon_port"` // host port, one per instance
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}
