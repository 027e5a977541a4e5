package types

import "time"

type User struct {
	ID         string    `json:"id" dynamodbav:"id"`
	Email      string    `json:"email" dynamodbav:"email"`
	Name       string    `json:"name" dynamodbav:"name"`
	Username   string    `json:"username,omitempty" dynamodbav:"username,omitempty"`
	AvatarURL  string    `json:"avatar_url,omitempty" dynamodbav:"avatar_url,omitempty"`
	Provider   string    `json:"provider" dynamodbav:"provider"`
	ProviderID string    `json:"provider_id" dynamodbav:"provider_id"`
	CreatedAt  time.Time `json:"created_at" dynamodbav:"created_at"`
}

// OAuthUser is the identity an external provider vouches for.
type OAuthUser struct {
	Name          string
	Email         string
	EmailVerified bool
	Provider      string
	ProviderID    string
	AvatarURL     string
	Username      string
}
