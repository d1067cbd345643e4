package config

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv     = "STOREFRONT_APP_ENV"
	EnvAPIBaseURL = "STOREFRONT_API_BASE_URL"
	EnvRedisURL   = "STOREFRONT_REDIS_URL"
	EnvJWTSecret  = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer  = "STOREFRONT_JWT_ISSUER"
)
