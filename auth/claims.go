package auth

import (
	"encoding/json"
)

// Claims is a decoded, verified credential.
type Claims struct {
	Issuer   string `json:"iss,omitempty"`
	Audience string `json:"aud,omitempty"`
	IssuedAt int64  `json:"iat,omitempty"`
	Expiry   int64  `json:"exp,omitempty"`
	Subject  string `json:"sub,omitempty"`
	UID      string `json:"uid,omitempty"`

	// Payload holds every claim the provider returned, including the
	// registered ones above.
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ClaimsFromMap builds Claims from a provider's raw claim set. The audience
// is the "aud" string or the first entry of an "aud" list. The UID is taken
// from "uid", then "user_id", then "sub".
func ClaimsFromMap(m map[string]interface{}) *Claims {
	cl := &Claims{
		Issuer:   stringClaim(m, "iss"),
		Audience: audienceClaim(m["aud"]),
		IssuedAt: intClaim(m, "iat"),
		Expiry:   intClaim(m, "exp"),
		Subject:  stringClaim(m, "sub"),
		Payload:  make(map[string]interface{}, len(m)),
	}
	for k, v := range m {
		cl.Payload[k] = v
	}
	for _, k := range []string{"uid", "user_id", "sub"} {
		if uid := stringClaim(m, k); uid != "" {
			cl.UID = uid
			break
		}
	}
	return cl
}

// Clone returns a copy of cl whose Payload can be modified independently.
func (cl *Claims) Clone() *Claims {
	if cl == nil {
		return nil
	}
	c := *cl
	if cl.Payload != nil {
		c.Payload = make(map[string]interface{}, len(cl.Payload))
		for k, v := range cl.Payload {
			c.Payload[k] = v
		}
	}
	return &c
}

func stringClaim(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func audienceClaim(v interface{}) string {
	switch aud := v.(type) {
	case string:
		return aud
	case []string:
		if len(aud) > 0 {
			return aud[0]
		}
	case []interface{}:
		if len(aud) > 0 {
			s, _ := aud[0].(string)
			return s
		}
	}
	return ""
}

func intClaim(m map[string]interface{}, key string) int64 {
	switch n := m[key].(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, _ := n.Float64()
			return int64(f)
		}
		return i
	}
	return 0
}
