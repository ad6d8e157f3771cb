package models

// JWTClaims are the verified bearer token claims the service reads. Sub is the identity
// provider's subject and keys the patient account; Email and Name are refreshed from the
// token on every request. Machine clients using the client-credentials grant carry no email.
type JWTClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Exp   int64  `json:"exp"`
	Iat   int64  `json:"iat"`
	Iss   string `json:"iss"`
	Aud   string `json:"aud"`
}
