package persistence

import (
	"errors"
	"fmt"
	"time"

	"github.com/esc4n0rx/streamhive/config"
	"github.com/esc4n0rx/streamhive/types"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormPersist struct {
	db *gorm.DB
}

func NewGormPersister(cfg *config.Config) (Persister, error) {
	db, err := setupGormDB(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	return &GormPersist{db: db}, nil
}

func setupGormDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	var dial gorm.Dialector
	switch cfg.PersistenceConfig.Type {
	case "postgres":
		dial = postgres.Open(cfg.PersistenceConfig.DSN)

	case "sqlite":
		dial = sqlite.Open(cfg.PersistenceConfig.DSN)

	default:
		return nil, fmt.Errorf("invalid gorm configuration")
	}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	err = db.Migrator().AutoMigrate(
		&types.User{},
		&types.Room{},
		&types.Membership{},
		&types.PlaybackSession{},
		&types.ChatMessage{},
		&types.RoomInvite{},
	)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (p *GormPersist) StoreUser(user types.User) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&user).Error
}

func (p *GormPersist) GetUser(user *types.User) error {
	return p.db.First(user).Error
}

func (p *GormPersist) GetUsers() ([]*types.User, error) {
	users := make([]*types.User, 0)
	err := p.db.Find(&users).Error
	return users, err
}

func (p *GormPersist) DeleteUser(user *types.User) error {
	return p.db.Delete(user).Error
}

func (p *GormPersist) StoreRoom(room types.Room) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&room).Error
}

func (p *GormPersist) GetRoom(room *types.Room) error {
	return p.db.First(room).Error
}

func (p *GormPersist) GetRoomByCode(code string) (*types.Room, error) {
	room := types.Room{}
	err := p.db.Where("code = ?", code).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (p *GormPersist) GetRooms() ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.Find(&rooms).Error
	return rooms, err
}

func (p *GormPersist) DeleteRoom(room *types.Room) error {
	return p.db.Delete(room).Error
}

func (p *GormPersist) StoreMembership(m types.Membership) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
}

func (p *GormPersist) FindMembership(userId, roomId string) (*types.Membership, error) {
	m := types.Membership{}
	err := p.db.Where("user_id = ? AND room_id = ?", userId, roomId).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *GormPersist) CountActiveMembers(roomId string) (int, error) {
	var count int64
	err := p.db.Model(&types.Membership{}).
		Where("room_id = ? AND is_active = ?", roomId, true).
		Count(&count).Error
	return int(count), err
}

func (p *GormPersist) CreateSession(s *types.PlaybackSession) error {
	return p.db.Create(s).Error
}

func (p *GormPersist) UpdateSession(s *types.PlaybackSession) error {
	return p.db.Save(s).Error
}

func (p *GormPersist) EndSession(id string, endedAt time.Time) error {
	return p.db.Model(&types.PlaybackSession{Id: id}).
		Updates(map[string]interface{}{
			"is_active":  false,
			"is_playing": false,
			"ended_at":   endedAt,
			"updated_at": endedAt,
		}).Error
}

func (p *GormPersist) FindActiveSession(roomId string) (*types.PlaybackSession, error) {
	s := types.PlaybackSession{}
	err := p.db.Where("room_id = ? AND is_active = ?", roomId, true).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *GormPersist) CreateMessage(m *types.ChatMessage) error {
	return p.db.Create(m).Error
}

func (p *GormPersist) GetMessage(id string) (*types.ChatMessage, error) {
	m := types.ChatMessage{Id: id}
	err := p.db.First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindMessages returns up to limit most recent messages of a room in
// chronological order.
func (p *GormPersist) FindMessages(roomId string, limit int) ([]*types.ChatMessage, error) {
	messages := make([]*types.ChatMessage, 0)
	err := p.db.Where("room_id = ?", roomId).
		Order("timestamp DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (p *GormPersist) DeleteMessage(id string) error {
	return p.db.Delete(&types.ChatMessage{Id: id}).Error
}

func (p *GormPersist) CreateInvite(i *types.RoomInvite) error {
	return p.db.Create(i).Error
}

func (p *GormPersist) UpdateInvite(i *types.RoomInvite) error {
	return p.db.Save(i).Error
}

func (p *GormPersist) GetInvite(id string) (*types.RoomInvite, error) {
	i := types.RoomInvite{Id: id}
	err := p.db.First(&i).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (p *GormPersist) FindInviteByCode(code string) (*types.RoomInvite, error) {
	i := types.RoomInvite{}
	err := p.db.Where("code = ?", code).First(&i).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (p *GormPersist) FindInvitesByRoom(roomId string) ([]*types.RoomInvite, error) {
	invites := make([]*types.RoomInvite, 0)
	err := p.db.Where("room_id = ?", roomId).Order("created_at DESC").Find(&invites).Error
	return invites, err
}

func (p *GormPersist) DeactivateExpiredInvites(now time.Time) (int, error) {
	res := p.db.Model(&types.RoomInvite{}).
		Where("is_active = ? AND expires_at < ?", true, now).
		Update("is_active", false)
	return int(res.RowsAffected), res.Error
}

func (p *GormPersist) Close() error {
	return nil
}
