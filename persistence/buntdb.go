package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/esc4n0rx/streamhive/config"
	"github.com/esc4n0rx/streamhive/types"
	"github.com/tidwall/buntdb"
)

// BuntDBPersist is the embedded single-file storage backend. Entities are
// stored as JSON values under typed key prefixes; lookups that are not by
// primary key go through small pointer keys (roomcode:, invitecode:,
// sessionactive:) or prefix scans.
type BuntDBPersist struct {
	db *buntdb.DB
}

func NewBuntPersister(cfg *config.Config) (Persister, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil // no configuration, ignore the persister
	}
	db, err := buntdb.Open(cfg.PersistenceConfig.DSN)
	if err != nil {
		return nil, err
	}
	err = db.CreateIndex("messagets", "message:*", buntdb.IndexJSON("timestamp"))
	if err != nil && err != buntdb.ErrIndexExists {
		db.Close()
		return nil, err
	}
	return &BuntDBPersist{db: db}, nil
}

func (p *BuntDBPersist) setJSON(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(raw), nil)
		return err
	})
}

func (p *BuntDBPersist) getJSON(key string, v interface{}) error {
	return p.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(key)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), v)
	})
}

func (p *BuntDBPersist) StoreUser(user types.User) error {
	return p.setJSON("user:"+user.Id, user)
}

func (p *BuntDBPersist) GetUser(user *types.User) error {
	if user.Id == "" {
		return fmt.Errorf("no user id")
	}
	return p.getJSON("user:"+user.Id, user)
}

func (p *BuntDBPersist) GetUsers() ([]*types.User, error) {
	users := make([]*types.User, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("user:*", func(key, val string) bool {
			user := &types.User{}
			if err := json.Unmarshal([]byte(val), user); err == nil {
				users = append(users, user)
			}
			return true
		})
	})
	return users, err
}

func (p *BuntDBPersist) DeleteUser(user *types.User) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete("user:" + user.Id)
		return err
	})
}

func (p *BuntDBPersist) StoreRoom(room types.Room) error {
	raw, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set("room:"+room.Id, string(raw), nil); err != nil {
			return err
		}
		if room.Code != "" {
			if _, _, err := tx.Set("roomcode:"+room.Code, room.Id, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *BuntDBPersist) GetRoom(room *types.Room) error {
	if room.Id == "" {
		return fmt.Errorf("no room id")
	}
	return p.getJSON("room:"+room.Id, room)
}

func (p *BuntDBPersist) GetRoomByCode(code string) (*types.Room, error) {
	room := &types.Room{}
	err := p.db.View(func(tx *buntdb.Tx) error {
		id, err := tx.Get("roomcode:" + code)
		if err != nil {
			return err
		}
		raw, err := tx.Get("room:" + id)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), room)
	})
	if err == buntdb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (p *BuntDBPersist) GetRooms() ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("room:*", func(key, val string) bool {
			room := &types.Room{}
			if err := json.Unmarshal([]byte(val), room); err == nil {
				rooms = append(rooms, room)
			}
			return true
		})
	})
	return rooms, err
}

func (p *BuntDBPersist) DeleteRoom(room *types.Room) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		if room.Code != "" {
			_, _ = tx.Delete("roomcode:" + room.Code)
		}
		_, err := tx.Delete("room:" + room.Id)
		return err
	})
}

func memberKey(roomId, userId string) string {
	return "member:" + roomId + ":" + userId
}

func (p *BuntDBPersist) StoreMembership(m types.Membership) error {
	return p.setJSON(memberKey(m.RoomId, m.UserId), m)
}

func (p *BuntDBPersist) FindMembership(userId, roomId string) (*types.Membership, error) {
	m := &types.Membership{}
	err := p.getJSON(memberKey(roomId, userId), m)
	if err == buntdb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (p *BuntDBPersist) CountActiveMembers(roomId string) (int, error) {
	count := 0
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("member:"+roomId+":*", func(key, val string) bool {
			m := types.Membership{}
			if err := json.Unmarshal([]byte(val), &m); err == nil && m.IsActive {
				count++
			}
			return true
		})
	})
	return count, err
}

func (p *BuntDBPersist) CreateSession(s *types.PlaybackSession) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set("session:"+s.Id, string(raw), nil); err != nil {
			return err
		}
		_, _, err := tx.Set("sessionactive:"+s.RoomId, s.Id, nil)
		return err
	})
}

func (p *BuntDBPersist) UpdateSession(s *types.PlaybackSession) error {
	return p.setJSON("session:"+s.Id, s)
}

func (p *BuntDBPersist) EndSession(id string, endedAt time.Time) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		raw, err := tx.Get("session:" + id)
		if err != nil {
			return err
		}
		s := types.PlaybackSession{}
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return err
		}
		s.IsActive = false
		s.IsPlaying = false
		s.EndedAt = &endedAt
		s.UpdatedAt = endedAt
		updated, err := json.Marshal(&s)
		if err != nil {
			return err
		}
		if _, _, err := tx.Set("session:"+id, string(updated), nil); err != nil {
			return err
		}
		_, _ = tx.Delete("sessionactive:" + s.RoomId)
		return nil
	})
}

func (p *BuntDBPersist) FindActiveSession(roomId string) (*types.PlaybackSession, error) {
	s := &types.PlaybackSession{}
	err := p.db.View(func(tx *buntdb.Tx) error {
		id, err := tx.Get("sessionactive:" + roomId)
		if err != nil {
			return err
		}
		raw, err := tx.Get("session:" + id)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), s)
	})
	if err == buntdb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (p *BuntDBPersist) CreateMessage(m *types.ChatMessage) error {
	return p.setJSON("message:"+m.Id, m)
}

func (p *BuntDBPersist) GetMessage(id string) (*types.ChatMessage, error) {
	m := &types.ChatMessage{}
	err := p.getJSON("message:"+id, m)
	if err == buntdb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// FindMessages walks the timestamp index newest-first, keeps messages of the
// requested room and returns them in chronological order.
func (p *BuntDBPersist) FindMessages(roomId string, limit int) ([]*types.ChatMessage, error) {
	messages := make([]*types.ChatMessage, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.Descend("messagets", func(key, val string) bool {
			m := &types.ChatMessage{}
			if err := json.Unmarshal([]byte(val), m); err != nil {
				return true
			}
			if m.RoomId != roomId {
				return true
			}
			messages = append(messages, m)
			return limit <= 0 || len(messages) < limit
		})
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (p *BuntDBPersist) DeleteMessage(id string) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete("message:" + id)
		return err
	})
}

func (p *BuntDBPersist) CreateInvite(i *types.RoomInvite) error {
	raw, err := json.Marshal(i)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set("invite:"+i.Id, string(raw), nil); err != nil {
			return err
		}
		_, _, err := tx.Set("invitecode:"+i.Code, i.Id, nil)
		return err
	})
}

func (p *BuntDBPersist) UpdateInvite(i *types.RoomInvite) error {
	return p.setJSON("invite:"+i.Id, i)
}

func (p *BuntDBPersist) GetInvite(id string) (*types.RoomInvite, error) {
	i := &types.RoomInvite{}
	err := p.getJSON("invite:"+id, i)
	if err == buntdb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return i, nil
}

func (p *BuntDBPersist) FindInviteByCode(code string) (*types.RoomInvite, error) {
	i := &types.RoomInvite{}
	err := p.db.View(func(tx *buntdb.Tx) error {
		id, err := tx.Get("invitecode:" + code)
		if err != nil {
			return err
		}
		raw, err := tx.Get("invite:" + id)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), i)
	})
	if err == buntdb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return i, nil
}

func (p *BuntDBPersist) FindInvitesByRoom(roomId string) ([]*types.RoomInvite, error) {
	invites := make([]*types.RoomInvite, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("invite:*", func(key, val string) bool {
			i := &types.RoomInvite{}
			if err := json.Unmarshal([]byte(val), i); err == nil && i.RoomId == roomId {
				invites = append(invites, i)
			}
			return true
		})
	})
	return invites, err
}

func (p *BuntDBPersist) DeactivateExpiredInvites(now time.Time) (int, error) {
	count := 0
	err := p.db.Update(func(tx *buntdb.Tx) error {
		expired := make([]*types.RoomInvite, 0)
		err := tx.AscendKeys("invite:*", func(key, val string) bool {
			i := &types.RoomInvite{}
			if err := json.Unmarshal([]byte(val), i); err == nil && i.IsActive && i.IsExpired(now) {
				expired = append(expired, i)
			}
			return true
		})
		if err != nil {
			return err
		}
		for _, i := range expired {
			i.IsActive = false
			raw, err := json.Marshal(i)
			if err != nil {
				return err
			}
			if _, _, err := tx.Set("invite:"+i.Id, string(raw), nil); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

func (p *BuntDBPersist) Close() error {
	return p.db.Close()
}
