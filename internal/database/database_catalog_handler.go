package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"streamgate/internal/catalog"
	"streamgate/internal/domain"
)

var ErrSourceNotFound = errors.New("source not found")

func ListSources() ([]domain.Source, error) {
	if DB == nil {
		return nil, fmt.Errorf("source: database connection was not initialised")
	}

	var sources []domain.Source
	if err := DB.Order("priority desc, id").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("source: list: %w", err)
	}
	return sources, nil
}

func GetSourceByID(sourceID uint64) (*domain.Source, error) {
	if DB == nil {
		return nil, fmt.Errorf("source: database connection was not initialised")
	}

	var source domain.Source
	if err := DB.First(&source, sourceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("source: fetch %d: %w", sourceID, err)
	}
	return &source, nil
}

func CreateSource(source domain.Source) (*domain.Source, error) {
	if DB == nil {
		return nil, fmt.Errorf("source: database connection was not initialised")
	}
	if source.Status == "" {
		source.Status = "pending"
	}
	if err := DB.Create(&source).Error; err != nil {
		return nil, fmt.Errorf("source: create: %w", err)
	}
	return &source, nil
}

// ReplaceSourceChannels atomically swaps the channel set contributed by one
// source and stamps the source row with the refresh result.
func ReplaceSourceChannels(sourceID uint64, channels []catalog.ParsedChannel) error {
	if DB == nil {
		return fmt.Errorf("source: database connection was not initialised")
	}

	return DB.Transaction(func(tx *gorm.DB) error {
		var source domain.Source
		if err := tx.First(&source, sourceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSourceNotFound
			}
			return err
		}

		var staleChannelIDs []uint64
		if err := tx.Model(&domain.Channel{}).
			Where("source_id = ?", sourceID).
			Pluck("id", &staleChannelIDs).Error; err != nil {
			return err
		}
		if len(staleChannelIDs) > 0 {
			if err := tx.Where("channel_id IN ?", staleChannelIDs).Delete(&domain.ChannelURL{}).Error; err != nil {
				return err
			}
			if err := tx.Where("source_id = ?", sourceID).Delete(&domain.Channel{}).Error; err != nil {
				return err
			}
		}

		for _, parsed := range channels {
			slug := catalog.NormalizeSlug(parsed.Slug)
			if slug == "" || len(parsed.URLs) == 0 {
				continue
			}

			channel := domain.Channel{
				Slug:      slug,
				Name:      parsed.Name,
				GroupName: parsed.Group,
				LogoURL:   parsed.LogoURL,
				SourceID:  sourceID,
			}
			if err := tx.Create(&channel).Error; err != nil {
				return err
			}

			for position, url := range parsed.URLs {
				channelURL := domain.ChannelURL{
					ChannelID: channel.ID,
					URL:       url,
					Position:  position,
				}
				if err := tx.Create(&channelURL).Error; err != nil {
					return err
				}
			}
		}

		now := time.Now().UTC()
		return tx.Model(&domain.Source{}).Where("id = ?", sourceID).Updates(map[string]any{
			"last_refreshed_at": now,
			"channel_count":     len(channels),
			"status":            "success",
			"error_message":     "",
		}).Error
	})
}

// MarkSourceFailed records a refresh failure without touching the previously
// published channel set.
func MarkSourceFailed(sourceID uint64, cause error) error {
	if DB == nil {
		return fmt.Errorf("source: database connection was not initialised")
	}

	message := ""
	if cause != nil {
		message = cause.Error()
	}
	return DB.Model(&domain.Source{}).Where("id = ?", sourceID).Updates(map[string]any{
		"status":        "error",
		"error_message": message,
	}).Error
}

type SourceChannels struct {
	Source   domain.Source
	Channels []catalog.ParsedChannel
}

// LoadCatalog reads every enabled source's persisted channel set, for seeding
// the in-memory catalog at boot or after a refresh broadcast.
func LoadCatalog() ([]SourceChannels, error) {
	if DB == nil {
		return nil, fmt.Errorf("source: database connection was not initialised")
	}

	sources, err := ListSources()
	if err != nil {
		return nil, err
	}

	result := make([]SourceChannels, 0, len(sources))
	for _, source := range sources {
		if !source.Enabled {
			continue
		}

		var channels []domain.Channel
		if err := DB.Preload("URLs", func(db *gorm.DB) *gorm.DB {
			return db.Order("position")
		}).Where("source_id = ?", source.ID).Order("id").Find(&channels).Error; err != nil {
			return nil, fmt.Errorf("source: load channels for %d: %w", source.ID, err)
		}

		parsed := make([]catalog.ParsedChannel, 0, len(channels))
		for _, channel := range channels {
			urls := make([]string, 0, len(channel.URLs))
			for _, channelURL := range channel.URLs {
				urls = append(urls, channelURL.URL)
			}
			parsed = append(parsed, catalog.ParsedChannel{
				Slug:    channel.Slug,
				Name:    channel.Name,
				Group:   channel.GroupName,
				LogoURL: channel.LogoURL,
				URLs:    urls,
			})
		}

		result = append(result, SourceChannels{Source: source, Channels: parsed})
	}
	return result, nil
}
