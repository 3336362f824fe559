package chat

import (
	"sync"

	"github.com/bhumika-maharjan/Chat-Application/internal/metrics"
)

// DirectRegistry 维护用户号到私聊会话的映射。一个用户可以同时开着
// 多个私聊，每个都是独立的 (对端, 会话) 条目。与房间注册表一样，
// 映射由注册表锁保护，每个用户槽位再带自己的锁。
type DirectRegistry struct {
	mu    sync.RWMutex
	users map[uint]*userSlot
	pairs map[pairKey]*sync.Mutex
}

type userSlot struct {
	mu      sync.Mutex
	gone    bool
	entries []directEntry
}

type directEntry struct {
	peerID uint
	s      *Session
}

type pairKey struct{ lo, hi uint }

func NewDirectRegistry() *DirectRegistry {
	return &DirectRegistry{
		users: make(map[uint]*userSlot),
		pairs: make(map[pairKey]*sync.Mutex),
	}
}

func (d *DirectRegistry) lookup(userID uint) *userSlot {
	d.mu.RLock()
	slot := d.users[userID]
	d.mu.RUnlock()
	return slot
}

func (d *DirectRegistry) getOrCreate(userID uint) *userSlot {
	if slot := d.lookup(userID); slot != nil {
		return slot
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if slot := d.users[userID]; slot != nil {
		return slot
	}
	slot := &userSlot{}
	d.users[userID] = slot
	return slot
}

// PairLock 返回一对用户共享的互斥锁。私聊的持久化与路由在该锁内
// 串行，保证同一对话内的消息次序与注册时的历史读取无竞争。
func (d *DirectRegistry) PairLock(a, b uint) *sync.Mutex {
	key := pairKey{lo: a, hi: b}
	if key.lo > key.hi {
		key.lo, key.hi = key.hi, key.lo
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if m := d.pairs[key]; m != nil {
		return m
	}
	m := &sync.Mutex{}
	d.pairs[key] = m
	return m
}

// Connect 把会话登记在发起方名下，并记录它获准交换消息的对端。
func (d *DirectRegistry) Connect(userID, peerID uint, s *Session) {
	for {
		slot := d.getOrCreate(userID)
		slot.mu.Lock()
		if slot.gone {
			slot.mu.Unlock()
			continue
		}
		slot.entries = append(slot.entries, directEntry{peerID: peerID, s: s})
		metrics.WsConnections.Inc()
		slot.mu.Unlock()
		return
	}
}

// Disconnect 精确移除 (对端, 会话) 条目；用户名下再无条目时回收
// 槽位。重复调用是空操作。
func (d *DirectRegistry) Disconnect(userID, peerID uint, s *Session) bool {
	slot := d.lookup(userID)
	if slot == nil {
		return false
	}
	slot.mu.Lock()
	removed := false
	kept := slot.entries[:0]
	for _, e := range slot.entries {
		if e.peerID == peerID && e.s == s {
			removed = true
			metrics.WsConnections.Dec()
			continue
		}
		kept = append(kept, e)
	}
	slot.entries = kept
	empty := len(slot.entries) == 0
	slot.mu.Unlock()
	if empty {
		d.reclaimIfEmpty(userID)
	}
	return removed
}

func (d *DirectRegistry) reclaimIfEmpty(userID uint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	slot := d.users[userID]
	if slot == nil {
		return
	}
	slot.mu.Lock()
	if len(slot.entries) == 0 {
		slot.gone = true
		delete(d.users, userID)
	}
	slot.mu.Unlock()
}

// Route 把负载送达接收方所有绑定了该发送方的会话，并回显给发送方
// 绑定该接收方的会话（本地投递确认）。返回真正送达接收方的会话数；
// 零表示对端离线，这不是错误。
func (d *DirectRegistry) Route(senderID, receiverID uint, payload []byte) int {
	delivered := 0
	if slot := d.lookup(receiverID); slot != nil {
		slot.mu.Lock()
		for _, e := range slot.entries {
			if e.peerID == senderID && e.s.Send(payload) {
				delivered++
			}
		}
		slot.mu.Unlock()
	}
	if senderID == receiverID {
		return delivered
	}
	if slot := d.lookup(senderID); slot != nil {
		slot.mu.Lock()
		for _, e := range slot.entries {
			if e.peerID == receiverID {
				e.s.Send(payload)
			}
		}
		slot.mu.Unlock()
	}
	return delivered
}

// Online 报告 userID 是否有任何私聊会话在线。
func (d *DirectRegistry) Online(userID uint) bool {
	slot := d.lookup(userID)
	if slot == nil {
		return false
	}
	slot.mu.Lock()
	n := len(slot.entries)
	slot.mu.Unlock()
	return n > 0
}
