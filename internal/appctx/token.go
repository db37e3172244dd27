package appctx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries an application context inside a JWT.
type Claims struct {
	EmpUid   string `json:"emp_uid,omitempty"`
	EmpName  string `json:"emp_name,omitempty"`
	DeptUid  string `json:"dept_uid,omitempty"`
	DeptCode string `json:"dept_code,omitempty"`
	OrgUid   string `json:"org_uid,omitempty"`
	GroupUid string `json:"group_uid,omitempty"`
	jwt.RegisteredClaims
}

// Context converts the claims into an application context.
func (c *Claims) Context() *Context {
	return &Context{
		EmpUid:   c.EmpUid,
		EmpName:  c.EmpName,
		UserUid:  c.Subject,
		DeptUid:  c.DeptUid,
		DeptCode: c.DeptCode,
		OrgUid:   c.OrgUid,
		GroupUid: c.GroupUid,
	}
}

// IssueToken signs an HS256 token for ac valid for ttl.
func IssueToken(ac *Context, secret []byte, issuer string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		EmpUid:   ac.EmpUid,
		EmpName:  ac.EmpName,
		DeptUid:  ac.DeptUid,
		DeptCode: ac.DeptCode,
		OrgUid:   ac.OrgUid,
		GroupUid: ac.GroupUid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   ac.UserUid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies an HS256 token and returns its application context.
func ParseToken(token string, secret []byte) (*Context, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims.Context(), nil
}
