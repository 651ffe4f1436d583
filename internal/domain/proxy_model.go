package domain

import (
	"fmt"
	"net"
	"strings"
	"time"

	"gorm.io/gorm"

	"streamgate/internal/security"
)

const (
	StatusActive    = "ACTIVE"
	StatusProbation = "PROBATION"
	StatusDisabled  = "DISABLED"
)

const (
	ProtocolHTTP   = "http"
	ProtocolSOCKS4 = "socks4"
	ProtocolSOCKS5 = "socks5"
)

type Proxy struct {
	ID                  uint64  `gorm:"primaryKey;autoIncrement"`
	Host                string  `gorm:"not null;size:255;uniqueIndex:idx_proxy_endpoint,priority:1"`
	Port                uint16  `gorm:"not null;uniqueIndex:idx_proxy_endpoint,priority:2"`
	Protocol            string  `gorm:"not null;size:16;default:'http'"`
	Username            string  `gorm:"size:120;default:''"`
	Password            string  `gorm:"-" json:"-"`
	PasswordEncrypted   string  `gorm:"column:password;default:''"`
	Status              string  `gorm:"not null;size:16;default:'ACTIVE';index"`
	SuccessCount        uint64  `gorm:"not null;default:0"`
	FailureCount        uint64  `gorm:"not null;default:0"`
	ConsecutiveFailures int     `gorm:"not null;default:0"`
	LatencyMS           float64 `gorm:"not null;default:0"`
	LastCheckedAt       *time.Time
	CreatedAt           time.Time `gorm:"autoCreateTime"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime"`
}

func (Proxy) TableName() string {
	return "proxies"
}

func (p *Proxy) BeforeSave(_ *gorm.DB) error {
	p.Protocol = strings.ToLower(strings.TrimSpace(p.Protocol))
	if p.Protocol == "" {
		p.Protocol = ProtocolHTTP
	}
	if p.Status == "" {
		p.Status = StatusActive
	}

	if p.Password != "" {
		encrypted, err := security.EncryptProxySecret(p.Password)
		if err != nil {
			return err
		}
		p.PasswordEncrypted = encrypted
	}
	return nil
}

func (p *Proxy) AfterFind(_ *gorm.DB) error {
	if p.PasswordEncrypted == "" {
		p.Password = ""
		return nil
	}

	password, _, err := security.DecryptProxySecret(p.PasswordEncrypted)
	if err != nil {
		return err
	}
	p.Password = password
	return nil
}

func (p *Proxy) Address() string {
	return net.JoinHostPort(p.Host, fmt.Sprintf("%d", p.Port))
}

func (p *Proxy) HasAuth() bool {
	return p.Username != "" && p.Password != ""
}

func SupportedProtocol(protocol string) bool {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case ProtocolHTTP, "https", ProtocolSOCKS4, ProtocolSOCKS5:
		return true
	default:
		return false
	}
}
