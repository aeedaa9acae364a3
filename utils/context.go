package utils

// ContextKey is the type of request-scoped values stored in a context.Context
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	UserAgentKey ContextKey = "user_agent"
	IPAddressKey ContextKey = "ip_address"
	EndpointKey  ContextKey = "endpoint"
	TenantIDKey  ContextKey = "tenant_id"
)
