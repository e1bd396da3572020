package services

import (
	"errors"
	"time"

	"github.com/codelieche/analytics/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

// ServiceClaims 服务间调用的JWT声明
type ServiceClaims struct {
	Service bool   `json:"service"`
	APIKey  string `json:"api_key,omitempty"`
	jwt.RegisteredClaims
}

// TokenSource 提供访问上游服务的Bearer token
type TokenSource interface {
	Token() (string, error)
}

// ServiceTokenSource 每次签发一个短期的服务token（HS256）
type ServiceTokenSource struct {
	secret  []byte
	subject string
	apiKey  string
	ttl     time.Duration
	now     func() time.Time
}

// NewServiceTokenSource 创建服务token签发器
func NewServiceTokenSource(secret, subject, apiKey string, ttl time.Duration) *ServiceTokenSource {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ServiceTokenSource{
		secret:  []byte(secret),
		subject: subject,
		apiKey:  apiKey,
		ttl:     ttl,
		now:     time.Now,
	}
}

// NewServiceTokenSourceFromConfig 根据config.ETL创建
func NewServiceTokenSourceFromConfig() *ServiceTokenSource {
	return NewServiceTokenSource(config.ETL.JWTSecret, config.ServiceTokenSubject, config.ETL.ServiceAPIKey, config.ETL.TokenTTL)
}

// Token 签发token
func (s *ServiceTokenSource) Token() (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("未配置JWT_SECRET，无法签发服务token")
	}

	now := s.now()
	claims := ServiceClaims{
		Service: true,
		APIKey:  s.apiKey,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
