package chat

import (
	"sync"

	"github.com/bhumika-maharjan/Chat-Application/internal/metrics"
	"github.com/bhumika-maharjan/Chat-Application/internal/models"
)

// RoomRegistry 维护房间号到在线会话集合的映射。映射整体由注册表锁
// 保护，每个房间再带一把自己的锁，join/leave/broadcast 只在对应
// 房间上互斥，避免单把全局锁成为瓶颈。
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[uint]*room
	store *Store
}

// room 的 gone 标记表示条目已被回收；拿到旧指针的调用方据此重试，
// 防止会话注册进一个已经脱离映射的房间。
type room struct {
	mu       sync.Mutex
	gone     bool
	sessions map[*Session]struct{}
}

func NewRoomRegistry(store *Store) *RoomRegistry {
	return &RoomRegistry{rooms: make(map[uint]*room), store: store}
}

func (r *RoomRegistry) lookup(roomID uint) *room {
	r.mu.RLock()
	rm := r.rooms[roomID]
	r.mu.RUnlock()
	return rm
}

func (r *RoomRegistry) getOrCreate(roomID uint) *room {
	if rm := r.lookup(roomID); rm != nil {
		return rm
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm := r.rooms[roomID]; rm != nil {
		return rm
	}
	rm := &room{sessions: make(map[*Session]struct{})}
	r.rooms[roomID] = rm
	return rm
}

// reclaimIfEmpty 回收空房间的映射槽位，不留下空集合。
func (r *RoomRegistry) reclaimIfEmpty(roomID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm := r.rooms[roomID]
	if rm == nil {
		return
	}
	rm.mu.Lock()
	if len(rm.sessions) == 0 {
		rm.gone = true
		delete(r.rooms, roomID)
	}
	rm.mu.Unlock()
}

// Join 授权并登记会话，返回注册瞬间的历史快照。历史读取与登记在
// 房间锁内完成：快照之后广播的每条消息都会进入该会话的暂存队列，
// 回放与实时消息拼接后正好等于存储顺序。
func (r *RoomRegistry) Join(conv RoomConversation, s *Session, credential string) ([]models.Message, error) {
	if err := conv.Authorize(r.store.db, s.UserID, credential); err != nil {
		return nil, err
	}
	for {
		rm := r.getOrCreate(conv.RoomID)
		rm.mu.Lock()
		if rm.gone {
			rm.mu.Unlock()
			continue
		}
		backlog, err := r.store.History(conv)
		if err == nil {
			rm.sessions[s] = struct{}{}
			metrics.WsConnections.Inc()
		}
		empty := len(rm.sessions) == 0
		rm.mu.Unlock()
		if err != nil {
			if empty {
				r.reclaimIfEmpty(conv.RoomID)
			}
			return nil, err
		}
		return backlog, nil
	}
}

// Leave 移除会话并报告它此前是否在房间里；不在时是空操作。最后
// 一个会话离开后房间槽位被回收。
func (r *RoomRegistry) Leave(roomID uint, s *Session) bool {
	rm := r.lookup(roomID)
	if rm == nil {
		return false
	}
	rm.mu.Lock()
	_, present := rm.sessions[s]
	if present {
		delete(rm.sessions, s)
		metrics.WsConnections.Dec()
	}
	empty := len(rm.sessions) == 0
	rm.mu.Unlock()
	if empty {
		r.reclaimIfEmpty(roomID)
	}
	return present
}

// Broadcast 把一行文本发给房间内所有会话，尽力而为：通道已断的
// 会话被跳过，移除交给它自己的断开路径。
func (r *RoomRegistry) Broadcast(roomID uint, line string) {
	rm := r.lookup(roomID)
	if rm == nil {
		return
	}
	rm.mu.Lock()
	for s := range rm.sessions {
		s.Send([]byte(line))
	}
	rm.mu.Unlock()
}

// Dispatch 在房间锁内先执行 produce（持久化并产出广播行）再广播，
// 同一房间的广播顺序因此与存储追加顺序一致。没有会话在线时同样要
// 占住房间锁：追加与并发 Join 的历史快照互斥，消息不会落在快照
// 之后又错过广播，空房间的并发追加也保持 sent_at 严格递增。
// produce 失败时不向任何会话投递。
func (r *RoomRegistry) Dispatch(roomID uint, produce func() (string, error)) error {
	for {
		rm := r.getOrCreate(roomID)
		rm.mu.Lock()
		if rm.gone {
			rm.mu.Unlock()
			continue
		}
		line, err := produce()
		if err == nil {
			for s := range rm.sessions {
				s.Send([]byte(line))
			}
		}
		empty := len(rm.sessions) == 0
		rm.mu.Unlock()
		if empty {
			r.reclaimIfEmpty(roomID)
		}
		return err
	}
}

// Online 返回房间当前在线会话数，供房间列表接口复用。
func (r *RoomRegistry) Online(roomID uint) int {
	rm := r.lookup(roomID)
	if rm == nil {
		return 0
	}
	rm.mu.Lock()
	n := len(rm.sessions)
	rm.mu.Unlock()
	return n
}
