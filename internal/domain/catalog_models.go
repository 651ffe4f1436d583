package domain

import "time"

// Source is a playlist origin. Its channel set is replaced wholesale on each
// refresh; Priority orders candidate URLs when several sources carry the same
// channel.
type Source struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement"`
	Name            string `gorm:"not null;size:120"`
	OriginURL       string `gorm:"not null;size:500"`
	Priority        int    `gorm:"not null;default:5;index"`
	Enabled         bool   `gorm:"not null;default:true"`
	LastRefreshedAt *time.Time
	ChannelCount    int       `gorm:"not null;default:0"`
	Status          string    `gorm:"size:50;default:'pending'"`
	ErrorMessage    string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (Source) TableName() string {
	return "sources"
}

type Channel struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Slug      string    `gorm:"not null;size:200;index:idx_channel_source_slug,priority:2"`
	Name      string    `gorm:"not null;size:200"`
	GroupName string    `gorm:"size:100"`
	LogoURL   string    `gorm:"size:500"`
	SourceID  uint64    `gorm:"not null;index:idx_channel_source_slug,priority:1"`
	Source    Source    `gorm:"foreignKey:SourceID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	URLs []ChannelURL `gorm:"foreignKey:ChannelID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (Channel) TableName() string {
	return "channels"
}

type ChannelURL struct {
	ID        uint64  `gorm:"primaryKey;autoIncrement"`
	ChannelID uint64  `gorm:"not null;index"`
	URL       string  `gorm:"not null;size:500"`
	Position  int     `gorm:"not null;default:0"`
	Channel   Channel `gorm:"foreignKey:ChannelID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (ChannelURL) TableName() string {
	return "channel_urls"
}

// AccessLog records one served relay request for the admin statistics view.
type AccessLog struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	ChannelSlug string    `gorm:"size:200;index"`
	SourceURL   string    `gorm:"size:500"`
	ProxyUsed   string    `gorm:"size:300"`
	Outcome     string    `gorm:"size:32"`
	ElapsedMS   int64     `gorm:"not null;default:0"`
	Bytes       int64     `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index"`
}

func (AccessLog) TableName() string {
	return "access_logs"
}
